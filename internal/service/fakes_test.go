package service

import (
	"context"
	"iter"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/lexdesk/internal/ai"
	"github.com/xxxsen/lexdesk/internal/model"
	"github.com/xxxsen/lexdesk/internal/pkg/retry"
	"github.com/xxxsen/lexdesk/internal/repo"
	"github.com/xxxsen/lexdesk/internal/testutil"
)

var fastPolicy = retry.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}

// fakeEmbedder encodes text length and first rune into a 3 dim vector.
type fakeEmbedder struct {
	mu      sync.Mutex
	calls   int
	batches [][]string
	errs    []error
	short   bool
	failOn  string
	hook    func()
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	f.batches = append(f.batches, append([]string(nil), texts...))
	var err error
	if len(f.errs) > 0 {
		err = f.errs[0]
		f.errs = f.errs[1:]
	}
	for _, text := range texts {
		if f.failOn != "" && strings.Contains(text, f.failOn) {
			err = &ai.StatusError{Provider: "fake", StatusCode: 400, Body: "rejected"}
		}
	}
	hook := f.hook
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		out = append(out, vectorFor(text))
	}
	if f.short && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (f *fakeEmbedder) ModelName() string { return "fake-embed" }

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func vectorFor(text string) []float32 {
	switch {
	case strings.Contains(text, "contract"):
		return []float32{1, 0, 0}
	case strings.Contains(text, "court"):
		return []float32{0, 1, 0}
	default:
		return []float32{0, 0, 1}
	}
}

// scriptedStreamer replays fragments and records the prompt and how many
// fragments were pulled.
type scriptedStreamer struct {
	fragments []string
	err       error
	prompt    []ai.ChatMessage
	pulled    atomic.Int32
	released  atomic.Bool
}

func (s *scriptedStreamer) StreamChat(ctx context.Context, messages []ai.ChatMessage) iter.Seq2[string, error] {
	s.prompt = append([]ai.ChatMessage(nil), messages...)
	return func(yield func(string, error) bool) {
		defer s.released.Store(true)
		for _, f := range s.fragments {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			s.pulled.Add(1)
			if !yield(f, nil) {
				return
			}
		}
		if s.err != nil {
			yield("", s.err)
		}
	}
}

func (s *scriptedStreamer) ModelName() string { return "scripted" }

type fixture struct {
	conn   *repo.Conn
	cases  *repo.CaseRepo
	chats  *repo.ChatRepo
	msgs   *repo.MessageRepo
	docs   *repo.DocumentRepo
	chunks *repo.EmbeddingRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := testutil.OpenTestConn(t)
	return &fixture{
		conn:   conn,
		cases:  repo.NewCaseRepo(conn),
		chats:  repo.NewChatRepo(conn),
		msgs:   repo.NewMessageRepo(conn),
		docs:   repo.NewDocumentRepo(conn),
		chunks: repo.NewEmbeddingRepo(conn),
	}
}

func (f *fixture) seedCase(t *testing.T) *model.Case {
	t.Helper()
	c := &model.Case{ID: newID(), UserID: "u-" + newID(), Title: "Case", Tags: []string{}, Ctime: 1, Mtime: 1}
	require.NoError(t, f.cases.Create(context.Background(), c))
	return c
}

func (f *fixture) seedDocument(t *testing.T, caseID, text string) *model.Document {
	t.Helper()
	doc := &model.Document{ID: newID(), CaseID: caseID, FileName: "doc.txt", FileURL: "/files/doc.txt", Content: &text, Ctime: 1}
	require.NoError(t, f.docs.Create(context.Background(), doc))
	return doc
}

func mustChunker(t *testing.T, size, overlap int) *ai.Chunker {
	t.Helper()
	c, err := ai.NewChunker(size, overlap)
	require.NoError(t, err)
	return c
}

func chunkContents(t *testing.T, f *fixture, docID string) []string {
	t.Helper()
	chunks, err := f.chunks.ListAllByDocuments(context.Background(), []string{docID})
	require.NoError(t, err)
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, c.Content)
	}
	return out
}
