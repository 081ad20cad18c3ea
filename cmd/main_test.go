package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/bookrec/internal/adapters/http/api"
	app "github.com/okian/bookrec/internal/app"
	"github.com/okian/bookrec/internal/config"
	"github.com/okian/bookrec/internal/domain/types"
	"github.com/okian/bookrec/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

const catalogBody = `{"totalItems":5,"items":[
 {"id":"a","volumeInfo":{"title":"Dune","authors":["Frank Herbert"],"description":"spice"}},
 {"id":"b","volumeInfo":{"title":"Dune","authors":["Someone Else"],"description":"robot"}},
 {"id":"c","volumeInfo":{"title":"I, Robot","authors":["Isaac Asimov"],"description":"robot empire"}},
 {"id":"d","volumeInfo":{"title":"Arrakis","description":"desert spice desert"}},
 {"id":"e","volumeInfo":{"title":"No Description"}}
]}`

// writeModel writes a two dimensional model where spice and desert point
// along x and robot and empire along y.
func writeModel(dir string) (string, string) {
	vocab := filepath.Join(dir, "vocab.json")
	weights := filepath.Join(dir, "weights.json")
	_ = os.WriteFile(vocab, []byte(`{"<OOV>":1,"spice":2,"desert":3,"robot":4,"empire":5}`), 0o600)
	_ = os.WriteFile(weights, []byte(`{"dim":2,"vectors":[[0,0],[0,0],[1,0],[1,0],[0,1],[0,1]]}`), 0o600)
	return vocab, weights
}

type stack struct {
	mux          *http.ServeMux
	auth         *api.Authenticator
	catalogCalls *atomic.Int64
	close        func()
}

func newStack(t *testing.T) *stack {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	calls := &atomic.Int64{}
	catalogSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(catalogBody))
	}))

	cfg := config.New()
	cfg.JWTSecret = "e2e-secret"
	cfg.CatalogBaseURL = catalogSrv.URL
	cfg.DatabaseDSN = filepath.Join(dir, "e2e.db")
	cfg.VocabPath, cfg.WeightsPath = writeModel(dir)

	auth, err := api.NewAuthenticator(cfg.JWTSecret)
	if err != nil {
		t.Fatalf("authenticator: %v", err)
	}
	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		t.Fatalf("embedder: %v", err)
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	svc := app.New(
		app.WithCatalog(newCatalog(cfg, logger.Get())),
		app.WithEmbedder(embedder),
		app.WithStore(store),
		app.WithRequestTimeout(cfg.RequestTimeout()),
	)
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	return &stack{
		mux:          newMux(svc, auth),
		auth:         auth,
		catalogCalls: calls,
		close: func() {
			svc.Stop()
			_ = store.Close()
			catalogSrv.Close()
		},
	}
}

func (s *stack) do(method, target, body, user string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, http.NoBody)
	}
	if user != "" {
		tok, err := s.auth.Sign(user, time.Hour)
		convey.So(err, convey.ShouldBeNil)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)
	return w
}

func TestRecommendationFlow(t *testing.T) {
	convey.Convey("Given the assembled service", t, func() {
		s := newStack(t)
		defer s.close()

		convey.Convey("When a user without history asks for recommendations", func() {
			w := s.do("GET", "/recommend", "", "bob")

			convey.Convey("Then it should be a 400 without any catalog call", func() {
				convey.So(w.Code, convey.ShouldEqual, http.StatusBadRequest)
				convey.So(w.Body.String(), convey.ShouldContainSubstring, "no reading history yet")
				convey.So(s.catalogCalls.Load(), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When a user with history asks for recommendations", func() {
			w := s.do("POST", "/history", `{"book_title":"Dune","description":"spice desert"}`, "alice")
			convey.So(w.Code, convey.ShouldEqual, http.StatusCreated)

			w = s.do("GET", "/recommend", "", "alice")
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			var recs []types.Recommendation
			convey.So(json.NewDecoder(w.Body).Decode(&recs), convey.ShouldBeNil)

			convey.Convey("Then titles should be unique with the first Dune kept", func() {
				titles := make([]string, 0, len(recs))
				for _, r := range recs {
					titles = append(titles, r.Title)
				}
				convey.So(titles, convey.ShouldResemble, []string{"Dune", "Arrakis", "I, Robot"})
				convey.So(recs[0].Description, convey.ShouldEqual, "spice")
				convey.So(recs[0].Author, convey.ShouldEqual, "Frank Herbert")
			})

			convey.Convey("And scores should be non-increasing", func() {
				for i := 1; i < len(recs); i++ {
					convey.So(recs[i-1].Score, convey.ShouldBeGreaterThanOrEqualTo, recs[i].Score)
				}
			})

			convey.Convey("And the records should be persisted once each", func() {
				_ = s.do("GET", "/recommend", "", "alice")
				w := s.do("GET", "/user/recommendations", "", "alice")
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				var stored []types.StoredRecommendation
				convey.So(json.NewDecoder(w.Body).Decode(&stored), convey.ShouldBeNil)
				convey.So(stored, convey.ShouldHaveLength, 3)
			})
		})

		convey.Convey("When searching the catalog", func() {
			w := s.do("GET", "/search?q=dune", "", "")
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			var hits []types.SearchResult
			convey.So(json.NewDecoder(w.Body).Decode(&hits), convey.ShouldBeNil)
			convey.So(hits, convey.ShouldHaveLength, 5)
		})

		convey.Convey("When fetching the docs", func() {
			w := s.do("GET", "/openapi.yaml", "", "")
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			w = s.do("GET", "/healthz", "", "")
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
		})
	})
}

func TestStartupHelpers(t *testing.T) {
	convey.Convey("Given startup helpers", t, func() {
		ctx := context.Background()

		convey.Convey("When the model files are missing", func() {
			cfg := config.New()
			cfg.VocabPath = filepath.Join(t.TempDir(), "missing.json")
			_, err := newEmbedder(ctx, cfg)
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When the database driver is unknown", func() {
			cfg := config.New()
			cfg.DatabaseDriver = "mysql"
			_, err := openStore(ctx, cfg)
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "mysql")
		})

		convey.Convey("When opening sqlite", func() {
			cfg := config.New()
			cfg.DatabaseDSN = filepath.Join(t.TempDir(), fmt.Sprintf("h-%d.db", time.Now().UnixNano()))
			store, err := openStore(ctx, cfg)
			convey.So(err, convey.ShouldBeNil)
			convey.So(store.Close(), convey.ShouldBeNil)
		})

		convey.Convey("When the metrics updater runs", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)

			ctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
			defer cancel()
			convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
		})
	})
}
