package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/hackrx-qa/docqa/engine/answer"
	"github.com/hackrx-qa/docqa/engine/knowledge/chunk"
	"github.com/hackrx-qa/docqa/engine/knowledge/embedder"
	"github.com/hackrx-qa/docqa/engine/knowledge/ingest"
	"github.com/hackrx-qa/docqa/engine/knowledge/retriever"
	"github.com/hackrx-qa/docqa/engine/knowledge/vectordb"
	"github.com/hackrx-qa/docqa/engine/pdftext"
	"github.com/hackrx-qa/docqa/engine/qa"
	"github.com/hackrx-qa/docqa/pkg/logger"
)

const testToken = "test-secret-token"

type stubFetcher struct {
	data  []byte
	err   error
	calls int
}

func (s *stubFetcher) Fetch(context.Context, string) ([]byte, error) {
	s.calls++
	return s.data, s.err
}

type stubExtractor struct {
	text  string
	calls int
}

func (s *stubExtractor) Extract(context.Context, []byte) (pdftext.Result, error) {
	s.calls++
	return pdftext.Result{Text: s.text, Pages: 1}, nil
}

type stubEmbedder struct{}

func (stubEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, float32(len(texts[i]) % 5)}
	}
	return out, nil
}

func (stubEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return []float32{1, float32(len(text) % 5)}, nil
}

type echoModel struct{}

func (echoModel) GenerateContent(
	_ context.Context,
	messages []llms.MessageContent,
	_ ...llms.CallOption,
) (*llms.ContentResponse, error) {
	prompt := ""
	for _, message := range messages {
		for _, part := range message.Parts {
			if text, ok := part.(llms.TextContent); ok {
				prompt = text.Text
			}
		}
	}
	// Echo the question back so answer ordering is observable.
	answerText := "answered"
	if idx := strings.Index(prompt, "Question: "); idx >= 0 {
		rest := prompt[idx+len("Question: "):]
		answerText = "answer to " + strings.TrimSpace(strings.SplitN(rest, "\n", 2)[0])
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: answerText}}}, nil
}

func (echoModel) Call(context.Context, string, ...llms.CallOption) (string, error) {
	return "answered", nil
}

// orthogonalEmbedder embeds documents and queries on perpendicular axes
// so every similarity score lands below the retrieval floor.
type orthogonalEmbedder struct{}

func (orthogonalEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (orthogonalEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return []float32{0, 1}, nil
}

func newTestRouter(t *testing.T, fetcher *stubFetcher, extractor *stubExtractor) *gin.Engine {
	return newTestRouterWithEmbedder(t, fetcher, extractor, stubEmbedder{})
}

func newTestRouterWithEmbedder(
	t *testing.T,
	fetcher *stubFetcher,
	extractor *stubExtractor,
	emb embedder.Embedder,
) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	store, err := vectordb.New(ctx, &vectordb.Config{
		Provider:   vectordb.ProviderMemory,
		Collection: "test",
		Dimension:  2,
	})
	require.NoError(t, err)
	splitter, err := chunk.NewSplitter(chunk.Settings{Size: 200, Overlap: 40, MinChunkChars: 20})
	require.NoError(t, err)
	pipeline, err := ingest.New(splitter, emb, store, ingest.Settings{
		RetryAttempts: 1,
		RetryBackoff:  time.Millisecond,
	})
	require.NoError(t, err)
	ret, err := retriever.New(emb, store, retriever.Settings{TopK: 5, MinScore: 0.3})
	require.NoError(t, err)
	generator, err := answer.Wrap(&answer.Config{Provider: answer.ProviderGroq, Model: "test-model"}, echoModel{})
	require.NoError(t, err)
	service, err := qa.NewService(qa.Options{
		Fetcher:      fetcher,
		Extractor:    extractor,
		Pipeline:     pipeline,
		Retriever:    ret,
		Generator:    generator,
		Store:        store,
		MinTextChars: 100,
	})
	require.NoError(t, err)
	return NewRouter(RouterOptions{
		AuthToken: testToken,
		Service:   service,
		Log:       logger.NewNop(),
	})
}

func healthyStubs() (*stubFetcher, *stubExtractor) {
	text := strings.Repeat("The policy covers hospitalization expenses after a waiting period. ", 10)
	return &stubFetcher{data: []byte("%PDF")}, &stubExtractor{text: text}
}

func doRun(router *gin.Engine, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/hackrx/run", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestHealthEndpoint(t *testing.T) {
	t.Run("ShouldRespondWithoutAuthentication", func(t *testing.T) {
		fetcher, extractor := healthyStubs()
		router := newTestRouter(t, fetcher, extractor)
		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)
		require.Equal(t, http.StatusOK, recorder.Code)
		var payload map[string]string
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
		assert.Equal(t, "API is running", payload["status"])
		assert.Equal(t, "HackRx Document Q&A API", payload["message"])
		assert.Equal(t, "/hackrx/run", payload["endpoint"])
	})
}

func TestRunEndpoint(t *testing.T) {
	validBody := `{
		"documents": "https://example.com/policy.pdf",
		"questions": ["What is covered?", "What is the waiting period?", "Is dental included?"]
	}`

	t.Run("ShouldAnswerQuestionsInOrder", func(t *testing.T) {
		fetcher, extractor := healthyStubs()
		router := newTestRouter(t, fetcher, extractor)
		recorder := doRun(router, testToken, validBody)
		require.Equal(t, http.StatusOK, recorder.Code)
		var payload struct {
			Answers []string `json:"answers"`
		}
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
		require.Len(t, payload.Answers, 3)
		assert.Equal(t, "answer to What is covered?", payload.Answers[0])
		assert.Equal(t, "answer to What is the waiting period?", payload.Answers[1])
		assert.Equal(t, "answer to Is dental included?", payload.Answers[2])
	})

	t.Run("ShouldSkipReprocessingOnRepeatSubmission", func(t *testing.T) {
		fetcher, extractor := healthyStubs()
		router := newTestRouter(t, fetcher, extractor)
		require.Equal(t, http.StatusOK, doRun(router, testToken, validBody).Code)
		require.Equal(t, http.StatusOK, doRun(router, testToken, validBody).Code)
		assert.Equal(t, 1, fetcher.calls)
		assert.Equal(t, 1, extractor.calls)
	})

	t.Run("ShouldStillAnswerWhenNoChunkClearsTheScoreFloor", func(t *testing.T) {
		fetcher, extractor := healthyStubs()
		router := newTestRouterWithEmbedder(t, fetcher, extractor, orthogonalEmbedder{})
		recorder := doRun(router, testToken, validBody)
		require.Equal(t, http.StatusOK, recorder.Code)
		var payload struct {
			Answers []string `json:"answers"`
		}
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
		require.Len(t, payload.Answers, 3)
		// Fallback retrieval keeps the best matches, so the model still
		// gets context instead of the no-context placeholder.
		assert.Equal(t, "answer to What is covered?", payload.Answers[0])
	})

	t.Run("ShouldRejectMissingToken", func(t *testing.T) {
		fetcher, extractor := healthyStubs()
		router := newTestRouter(t, fetcher, extractor)
		recorder := doRun(router, "", validBody)
		require.Equal(t, http.StatusUnauthorized, recorder.Code)
		assert.Zero(t, fetcher.calls)
	})

	t.Run("ShouldRejectWrongToken", func(t *testing.T) {
		fetcher, extractor := healthyStubs()
		router := newTestRouter(t, fetcher, extractor)
		recorder := doRun(router, "wrong-token", validBody)
		require.Equal(t, http.StatusUnauthorized, recorder.Code)
		assert.Zero(t, fetcher.calls)
	})

	t.Run("ShouldReturn400WhenDocumentCannotBeProcessed", func(t *testing.T) {
		fetcher := &stubFetcher{err: errors.New("downloaded content is not a valid PDF")}
		_, extractor := healthyStubs()
		router := newTestRouter(t, fetcher, extractor)
		recorder := doRun(router, testToken, validBody)
		require.Equal(t, http.StatusBadRequest, recorder.Code)
		var payload map[string]string
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
		assert.Equal(t, "Failed to process PDF document", payload["detail"])
		assert.Zero(t, extractor.calls)
	})

	t.Run("ShouldRejectInvalidRequestBody", func(t *testing.T) {
		fetcher, extractor := healthyStubs()
		router := newTestRouter(t, fetcher, extractor)
		recorder := doRun(router, testToken, `{"documents": "https://example.com/doc.pdf", "questions": []}`)
		require.Equal(t, http.StatusBadRequest, recorder.Code)
		assert.Zero(t, fetcher.calls)
	})

	t.Run("ShouldRejectNonURLDocument", func(t *testing.T) {
		fetcher, extractor := healthyStubs()
		router := newTestRouter(t, fetcher, extractor)
		recorder := doRun(router, testToken, `{"documents": "not a url", "questions": ["q?"]}`)
		require.Equal(t, http.StatusBadRequest, recorder.Code)
		assert.Zero(t, extractor.calls)
	})
}
