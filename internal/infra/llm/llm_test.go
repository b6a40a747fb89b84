package llm_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"voice-chatbot/internal/infra/llm"
)

func TestRemoteGenerator_Generate(t *testing.T) {
	var got struct {
		Model     string `json:"model"`
		Prompt    string `json:"prompt"`
		MaxTokens int    `json:"max_tokens"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/completions" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"text":" Hi there! "}]}`))
	}))
	defer server.Close()

	gen := llm.NewRemoteGenerator(server.URL, "", "quantized-llama3", 50, 0)

	reply, err := gen.Generate(context.Background(), "Hello")
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if reply != "Hi there!" {
		t.Errorf("reply: got %q, want %q", reply, "Hi there!")
	}
	if got.Prompt != "Hello" || got.Model != "quantized-llama3" || got.MaxTokens != 50 {
		t.Errorf("request: got %+v", got)
	}
}

func TestRemoteGenerator_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`},
		{name: "server error", status: http.StatusInternalServerError, body: `{"error":{"message":"model not loaded"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			gen := llm.NewRemoteGenerator(server.URL, "", "quantized-llama3", 50, 0)
			if _, err := gen.Generate(context.Background(), "Hello"); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

// TestHelperRunner stands in for the local model runner when
// GO_WANT_HELPER_RUNNER is set.
func TestHelperRunner(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_RUNNER") != "1" {
		return
	}

	var req struct {
		Prompt             string `json:"prompt"`
		Model              string `json:"model"`
		MaxLength          int    `json:"max_length"`
		NumReturnSequences int    `json:"num_return_sequences"`
		Device             string `json:"device"`
	}
	data, _ := io.ReadAll(os.Stdin)
	if err := json.Unmarshal(data, &req); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if req.MaxLength != 50 || req.NumReturnSequences != 1 || req.Device != "auto" || req.Model != "distilgpt2" {
		fmt.Fprintf(os.Stderr, "unexpected request %+v\n", req)
		os.Exit(3)
	}

	out, _ := json.Marshal(map[string]string{
		"text": req.Prompt + ", how are you?<|endoftext|><pad><pad>",
	})
	os.Stdout.Write(out)
	os.Exit(0)
}

func helperCommand() string {
	return fmt.Sprintf("%q -test.run=^TestHelperRunner$", os.Args[0])
}

func TestLocalGenerator_Generate(t *testing.T) {
	t.Setenv("GO_WANT_HELPER_RUNNER", "1")

	gen, err := llm.NewLocalGenerator(helperCommand(), "distilgpt2", "", 50)
	if err != nil {
		t.Fatalf("creating generator: %v", err)
	}

	reply, err := gen.Generate(context.Background(), "Hello")
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if reply != "Hello, how are you?" {
		t.Errorf("reply: got %q", reply)
	}
	for _, marker := range []string{"<|endoftext|>", "<pad>", "</s>"} {
		if strings.Contains(reply, marker) {
			t.Errorf("reply still contains %s", marker)
		}
	}
}

func TestLocalGenerator_RunnerFailure(t *testing.T) {
	t.Setenv("GO_WANT_HELPER_RUNNER", "1")

	gen, err := llm.NewLocalGenerator(helperCommand(), "gpt2", "", 50)
	if err != nil {
		t.Fatalf("creating generator: %v", err)
	}

	if _, err := gen.Generate(context.Background(), "Hello"); err == nil {
		t.Error("expected the runner exit status to surface as an error")
	}
}

func TestNewLocalGenerator_EmptyCommand(t *testing.T) {
	if _, err := llm.NewLocalGenerator("   ", "distilgpt2", "", 50); err == nil {
		t.Error("expected an error for an empty command")
	}
}

func TestStripSpecialTokens(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "<s> Hello world</s>", want: "Hello world"},
		{in: "plain text", want: "plain text"},
		{in: "<|im_start|>hi<|im_end|><|endoftext|>", want: "hi"},
		{in: "<unk>", want: ""},
	}

	for _, tt := range tests {
		if got := llm.StripSpecialTokens(tt.in); got != tt.want {
			t.Errorf("StripSpecialTokens(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}
