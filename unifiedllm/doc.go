// Package unifiedllm is a small provider-agnostic LLM client that wraps the
// gollm library (github.com/teilomillet/gollm).
//
// It is the text-generation capability behind the caveagent player: given an
// ordered list of role-tagged messages, produce the next assistant message.
//
// # Architecture
//
//   - ProviderAdapter: one backend (gollm, or a test double)
//   - Client: routes requests to adapters by provider name and applies
//     middleware in onion order
//   - Retry: exponential backoff for errors classified as retryable
//   - Catalog: known model identifiers and their providers
//
// # Quick Start
//
//	adapter, err := unifiedllm.NewGollmAdapter("ollama", "", unifiedllm.WithModel("phi4-mini"))
//	if err != nil {
//	    return err
//	}
//	client := unifiedllm.NewClient(unifiedllm.WithProvider("ollama", adapter))
//
//	resp, err := client.Complete(ctx, unifiedllm.Request{
//	    Messages: []unifiedllm.Message{
//	        unifiedllm.SystemMessage("You are the player."),
//	        unifiedllm.UserMessage("You are standing at the end of a road."),
//	    },
//	})
//	fmt.Println(resp.Text)
package unifiedllm
