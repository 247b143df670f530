// Package agentloop drives a text-adventure game with a language-model
// player.
//
// The loop reads game output, asks the player for a response, pulls a
// command out of the response text and types it into the game, until the
// game process exits.
//
// # Architecture
//
//   - Agent: the player. Holds the Transcript and calls a Generator, the
//     opaque text-generation capability.
//   - Transcript: ordered role-tagged messages, bounded by a ContextPolicy.
//   - ParseCommand: extracts command({"line": "..."}) from free-form text.
//   - CommandLoop: the read, respond, parse, send cycle over a GameChannel.
//   - EventEmitter: synchronous notifications for the host (console trace,
//     logging).
//
// # Quick Start
//
//	session, err := game.Open(ctx, game.Options{})
//	if err != nil {
//	    return err
//	}
//	defer session.Close()
//
//	player, err := agentloop.NewAgent(agentloop.NewLLMGenerator(client, agentloop.LLMGeneratorOptions{}), nil)
//	if err != nil {
//	    return err
//	}
//	loop := agentloop.NewCommandLoop(session, player, nil)
//	return loop.Run(ctx)
package agentloop
