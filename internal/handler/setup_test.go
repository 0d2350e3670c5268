package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"iter"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/xxxsen/lexdesk/internal/ai"
	"github.com/xxxsen/lexdesk/internal/config"
	"github.com/xxxsen/lexdesk/internal/extract"
	"github.com/xxxsen/lexdesk/internal/filestore"
	"github.com/xxxsen/lexdesk/internal/handler"
	"github.com/xxxsen/lexdesk/internal/middleware"
	"github.com/xxxsen/lexdesk/internal/pkg/retry"
	"github.com/xxxsen/lexdesk/internal/repo"
	"github.com/xxxsen/lexdesk/internal/service"
	"github.com/xxxsen/lexdesk/internal/testutil"
)

type stubStreamer struct {
	fragments []string
	err       error
}

func (s *stubStreamer) StreamChat(ctx context.Context, messages []ai.ChatMessage) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, f := range s.fragments {
			if !yield(f, nil) {
				return
			}
		}
		if s.err != nil {
			yield("", s.err)
		}
	}
}

func (s *stubStreamer) ModelName() string { return "stub" }

type stubEmbedder struct{}

func (stubEmbedder) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, float32(len(texts[i])), 0}
	}
	return out, nil
}

func (stubEmbedder) ModelName() string { return "stub-embed" }

type envelope struct {
	Code int             `json:"code"`
	Data json.RawMessage `json:"data"`
}

type testServer struct {
	t       *testing.T
	handler http.Handler
	userID  string
}

func setupRouter(t *testing.T, streamer ai.IChatStreamer) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn := testutil.OpenTestConn(t)
	caseRepo := repo.NewCaseRepo(conn)
	chatRepo := repo.NewChatRepo(conn)
	msgRepo := repo.NewMessageRepo(conn)
	docRepo := repo.NewDocumentRepo(conn)
	chunkRepo := repo.NewEmbeddingRepo(conn)

	store, err := filestore.New(config.FileStoreConfig{
		Type: "local",
		Data: map[string]interface{}{
			"dir": t.TempDir(),
		},
	})
	require.NoError(t, err)

	chunker, err := ai.NewChunker(40, 5)
	require.NoError(t, err)
	policy := retry.Policy{MaxAttempts: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
	indexer := service.NewIndexer(chunker, stubEmbedder{}, chunkRepo, policy)
	retriever := service.NewRetriever(docRepo, chunkRepo, stubEmbedder{}, 6)
	orchestrator := service.NewOrchestrator(streamer, "You are a legal assistant.")

	deps := handler.RouterDeps{
		Cases:     handler.NewCaseHandler(service.NewCaseService(caseRepo)),
		Chats:     handler.NewChatHandler(service.NewChatService(caseRepo, chatRepo)),
		Documents: handler.NewDocumentHandler(service.NewDocumentService(caseRepo, docRepo, chunkRepo, store, "uploads", extract.New(nil), indexer), retriever, 1024),
		Messages:  handler.NewMessageHandler(service.NewMessageService(chatRepo, msgRepo, retriever, orchestrator)),
		Files:     handler.NewFileHandler(store),
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
		),
	)
	require.NoError(t, err)
	return &testServer{t: t, handler: engine, userID: "lawyer-1"}
}

func (s *testServer) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(s.t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if s.userID != "" {
		req.Header.Set("X-User-Id", s.userID)
	}
	resp := httptest.NewRecorder()
	s.handler.ServeHTTP(resp, req)
	return resp
}

// call decodes the envelope and, for code 0, the data into out.
func (s *testServer) call(method, path string, body interface{}, out interface{}) int {
	s.t.Helper()
	resp := s.do(method, path, body)
	require.Equal(s.t, http.StatusOK, resp.Code)
	var env envelope
	require.NoError(s.t, json.Unmarshal(resp.Body.Bytes(), &env))
	if env.Code == 0 && out != nil {
		require.NoError(s.t, json.Unmarshal(env.Data, out))
	}
	return env.Code
}
