package embedding_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/goccy/go-json"
	embedding "github.com/okian/bookrec/internal/adapters/embedding"
	model "github.com/okian/bookrec/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var testVocab = map[string]int{
	"<OOV>":  1,
	"dune":   2,
	"desert": 3,
	"planet": 4,
	"spice":  5,
	"empire": 6,
}

var testRows = [][]float32{
	{0, 0}, // padding
	{0, 1}, // <OOV>
	{2, 0},
	{4, 2},
	{6, 4},
	{8, 6},
	{1, 1},
}

func writeJSON(t *testing.T, dir, name string, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal %s: %v", name, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, b, 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestTokenizer(t *testing.T) {
	Convey("Given a tokenizer with an OOV entry", t, func() {
		tok, err := embedding.NewTokenizer(testVocab)
		So(err, ShouldBeNil)

		Convey("When splitting text into words", func() {
			words := tok.Words("Dune: Desert-Planet!  SPICE\n")

			Convey("Then punctuation should be stripped and case folded", func() {
				So(words, ShouldResemble, []string{"dune", "desert", "planet", "spice"})
			})
		})

		Convey("When tokenizing a short text", func() {
			seq := tok.Tokenize("Dune, the spice of Arrakis")

			Convey("Then it should be post-padded to the fixed length", func() {
				So(seq, ShouldHaveLength, embedding.MaxSequenceLength)
				So(seq[:5], ShouldResemble, []int{2, 1, 5, 1, 1})
				for _, idx := range seq[5:] {
					So(idx, ShouldEqual, embedding.Padding)
				}
			})
		})

		Convey("When tokenizing a text longer than the fixed length", func() {
			text := strings.Repeat("dune ", embedding.MaxSequenceLength) + "empire"
			seq := tok.Tokenize(text)

			Convey("Then the tail should be truncated", func() {
				So(seq, ShouldHaveLength, embedding.MaxSequenceLength)
				So(seq[embedding.MaxSequenceLength-1], ShouldEqual, 2)
			})
		})

		Convey("When tokenizing an empty text", func() {
			seq := tok.Tokenize("")
			So(seq, ShouldResemble, make([]int, embedding.MaxSequenceLength))
		})
	})

	Convey("Given a tokenizer without an OOV entry", t, func() {
		tok, err := embedding.NewTokenizer(map[string]int{"dune": 1})
		So(err, ShouldBeNil)

		Convey("Then unknown words should be dropped", func() {
			seq := tok.Tokenize("unknown dune words")
			So(seq[0], ShouldEqual, 1)
			So(seq[1], ShouldEqual, embedding.Padding)
		})
	})

	Convey("Given invalid vocabularies", t, func() {
		_, err := embedding.NewTokenizer(nil)
		So(errors.Is(err, embedding.ErrLoadModel), ShouldBeTrue)

		_, err = embedding.NewTokenizer(map[string]int{"pad": 0})
		So(errors.Is(err, embedding.ErrLoadModel), ShouldBeTrue)
	})
}

func TestTable(t *testing.T) {
	Convey("Given an embedding table", t, func() {
		table, err := embedding.NewTable(2, testRows)
		So(err, ShouldBeNil)
		So(table.Dimensions(), ShouldEqual, 2)

		Convey("When encoding a sequence", func() {
			v := table.Encode([]int{2, 3, 0, 0})

			Convey("Then it should mean-pool the non-padding rows", func() {
				So(v, ShouldResemble, model.Embedding{3, 1})
			})
		})

		Convey("When encoding an all-padding sequence", func() {
			v := table.Encode(make([]int, 10))

			Convey("Then it should be the zero vector", func() {
				So(v, ShouldResemble, model.Embedding{0, 0})
			})
		})
	})

	Convey("Given malformed tables", t, func() {
		_, err := embedding.NewTable(0, testRows)
		So(errors.Is(err, embedding.ErrLoadModel), ShouldBeTrue)

		_, err = embedding.NewTable(2, [][]float32{{0, 0}, {1}})
		So(errors.Is(err, embedding.ErrLoadModel), ShouldBeTrue)
	})
}

func TestLocal(t *testing.T) {
	ctx := context.Background()

	Convey("Given model files on disk", t, func() {
		dir := t.TempDir()
		vocabPath := writeJSON(t, dir, "vocab.json", testVocab)
		weightsPath := writeJSON(t, dir, "weights.json", map[string]any{"dim": 2, "vectors": testRows})

		Convey("When loading through New", func() {
			emb, err := embedding.New(ctx, embedding.Options{
				Provider:    embedding.BackendLocal,
				VocabPath:   vocabPath,
				WeightsPath: weightsPath,
			})
			So(err, ShouldBeNil)
			So(emb.Backend(), ShouldEqual, embedding.BackendLocal)
			So(emb.Dimensions(), ShouldEqual, 2)

			Convey("Then encode should preserve order", func() {
				out, err := emb.Encode(ctx, []string{"dune desert", "spice", "empire"})
				So(err, ShouldBeNil)
				So(out, ShouldResemble, []model.Embedding{{3, 1}, {8, 6}, {1, 1}})
			})

			Convey("Then encoding no texts should return an empty result", func() {
				out, err := emb.Encode(ctx, []string{})
				So(err, ShouldBeNil)
				So(out, ShouldNotBeNil)
				So(out, ShouldBeEmpty)
			})

			Convey("Then a cancelled context should fail the call", func() {
				cctx, cancel := context.WithCancel(ctx)
				cancel()
				_, err := emb.Encode(cctx, []string{"dune"})
				So(errors.Is(err, embedding.ErrEncode), ShouldBeTrue)
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			})
		})

		Convey("When the vocabulary file is missing", func() {
			_, err := embedding.LoadLocal(filepath.Join(dir, "missing.json"), weightsPath)
			So(errors.Is(err, embedding.ErrLoadModel), ShouldBeTrue)
		})

		Convey("When the vocabulary references rows the table lacks", func() {
			big := writeJSON(t, dir, "big.json", map[string]int{"dune": 99})
			_, err := embedding.LoadLocal(big, weightsPath)
			So(errors.Is(err, embedding.ErrLoadModel), ShouldBeTrue)
		})
	})

	Convey("Given an unknown provider", t, func() {
		_, err := embedding.New(ctx, embedding.Options{Provider: "bert"})
		So(errors.Is(err, embedding.ErrUnknownProvider), ShouldBeTrue)
	})
}

type embeddingsRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions *int     `json:"dimensions"`
}

// legacyModel rejects the dimensions parameter like text-embedding-ada-002.
const legacyModel = "text-embedding-ada-002"

// newOpenAIServer counts calls and stores the last requested width in
// dims, or -1 when the request carried none.
func newOpenAIServer(t *testing.T, calls, dims *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		calls.Add(1)
		var req embeddingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		dims.Store(-1)
		if req.Dimensions != nil {
			dims.Store(int64(*req.Dimensions))
			if req.Model == legacyModel {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":{"message":"This model does not support specifying dimensions.","type":"invalid_request_error"}}`))
				return
			}
		}
		// Respond in reverse order to exercise index matching.
		data := make([]map[string]any, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float32{float32(len(req.Input[i])), 1, 0},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  req.Model,
			"data":   data,
		})
	}))
}

func TestOpenAI(t *testing.T) {
	ctx := context.Background()

	Convey("Given an OpenAI-compatible endpoint", t, func() {
		var calls, dims atomic.Int64
		srv := newOpenAIServer(t, &calls, &dims)
		defer srv.Close()

		Convey("When the width is not configured", func() {
			emb, err := embedding.NewOpenAI(ctx, "test-key", embedding.WithBaseURL(srv.URL+"/v1"))

			Convey("Then it should be learned from one startup request", func() {
				So(err, ShouldBeNil)
				So(emb.Dimensions(), ShouldEqual, 3)
				So(emb.Backend(), ShouldEqual, embedding.BackendOpenAI)
				So(calls.Load(), ShouldEqual, 1)
			})

			Convey("Then results should follow input order", func() {
				out, err := emb.Encode(ctx, []string{"a", "abcd", "ab"})
				So(err, ShouldBeNil)
				So(out, ShouldResemble, []model.Embedding{{1, 1, 0}, {4, 1, 0}, {2, 1, 0}})
			})

			Convey("Then later requests should not send a width", func() {
				_, err := emb.Encode(ctx, []string{"a"})
				So(err, ShouldBeNil)
				So(dims.Load(), ShouldEqual, -1)
			})

			Convey("Then an empty input should not call the endpoint", func() {
				before := calls.Load()
				out, err := emb.Encode(ctx, nil)
				So(err, ShouldBeNil)
				So(out, ShouldBeEmpty)
				So(calls.Load(), ShouldEqual, before)
			})
		})

		Convey("When the model does not accept a width", func() {
			emb, err := embedding.NewOpenAI(ctx, "test-key",
				embedding.WithBaseURL(srv.URL+"/v1"),
				embedding.WithModel(legacyModel),
			)
			So(err, ShouldBeNil)

			Convey("Then encoding after the width is learned should still succeed", func() {
				out, err := emb.Encode(ctx, []string{"ab", "abc"})
				So(err, ShouldBeNil)
				So(out, ShouldResemble, []model.Embedding{{2, 1, 0}, {3, 1, 0}})
				So(emb.Dimensions(), ShouldEqual, 3)
			})
		})

		Convey("When the width is configured", func() {
			emb, err := embedding.NewOpenAI(ctx, "test-key",
				embedding.WithBaseURL(srv.URL+"/v1"),
				embedding.WithDimensions(3),
			)

			Convey("Then no startup request should be made and the width should be sent", func() {
				So(err, ShouldBeNil)
				So(calls.Load(), ShouldEqual, 0)
				So(emb.Dimensions(), ShouldEqual, 3)
				_, err = emb.Encode(ctx, []string{"a"})
				So(err, ShouldBeNil)
				So(dims.Load(), ShouldEqual, 3)
			})
		})

		Convey("When the endpoint is unreachable at startup", func() {
			_, err := embedding.NewOpenAI(ctx, "test-key", embedding.WithBaseURL(srv.URL+"/missing"))

			Convey("Then loading should fail", func() {
				So(errors.Is(err, embedding.ErrLoadModel), ShouldBeTrue)
			})
		})
	})
}
