package pipeline

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/novelsplit/internal/chunker"
	"github.com/dgallion1/novelsplit/internal/extract"
)

const sampleNovel = "작가의 말\n\n" +
	"1화 시작\n첫 번째 본문입니다.\n\n" +
	"2화 만남\n두 번째 본문.\n\n" +
	"3화 이별\n세 번째 본문, 가장 긴 본문입니다. 아주 길고 긴 이야기가 이어집니다.\n"

// stubLLM answers every prompt with reply and records the prompts it saw.
type stubLLM struct {
	mu      sync.Mutex
	reply   func(prompt string, call int) (string, error)
	prompts []string
}

func (s *stubLLM) Complete(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	call := len(s.prompts)
	s.mu.Unlock()
	return s.reply(prompt, call)
}
func (s *stubLLM) Model() string { return "stub" }
func (s *stubLLM) Close()        {}

func (s *stubLLM) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSplitter(llm extract.Client) *Splitter {
	s := NewSplitter(llm, discardLogger(), chunker.DefaultConfig(), 1)
	s.backoff = func(int) time.Duration { return time.Millisecond }
	return s
}
