package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/toolrank/internal/adapters/http/api"
	"github.com/okian/toolrank/internal/adapters/repository"
	service "github.com/okian/toolrank/internal/app"
	"github.com/okian/toolrank/internal/domain/model"
	"github.com/okian/toolrank/internal/domain/ranking"
	. "github.com/smartystreets/goconvey/convey"
)

var fixedNow = time.Date(2026, 10, 12, 12, 0, 0, 0, time.UTC)

// mockDependencies implements api.Dependencies over canned data.
type mockDependencies struct {
	ingested  []model.Event
	ingestErr error
	rows      []repository.Standing
	period    *ranking.Period
	closeErr  error
	closedAt  time.Time
	recompute string
}

func (m *mockDependencies) Ingest(_ context.Context, e model.Event) (model.Event, error) {
	if e.ID == "" {
		e.ID = "generated"
	}
	if m.ingestErr != nil {
		return e, m.ingestErr
	}
	m.ingested = append(m.ingested, e)
	return e, nil
}

func (m *mockDependencies) TopN(_ context.Context, n int) ([]repository.Standing, error) {
	if n < 1 {
		return nil, repository.ErrInvalidLimit
	}
	if n > len(m.rows) {
		return m.rows, nil
	}
	return m.rows[:n], nil
}

func (m *mockDependencies) Rank(_ context.Context, id string) (repository.Standing, error) {
	for i, r := range m.rows {
		if r.ToolID == id {
			r.Position = i + 1
			return r, nil
		}
	}
	return repository.Standing{}, repository.ErrNotFound
}

func (m *mockDependencies) CurrentPeriod(context.Context) (*ranking.Period, error) {
	if m.period == nil {
		return nil, repository.ErrNotFound
	}
	return m.period, nil
}

func (m *mockDependencies) Period(_ context.Context, id string) (*ranking.Period, error) {
	if m.period == nil || m.period.ID != id {
		return nil, fmt.Errorf("%w: period %s", repository.ErrNotFound, id)
	}
	return m.period, nil
}

func (m *mockDependencies) PeriodIDs(context.Context) ([]string, error) {
	if m.period == nil {
		return nil, nil
	}
	return []string{m.period.ID}, nil
}

func (m *mockDependencies) Audit(_ context.Context, id string) ([]ranking.Audit, error) {
	return []ranking.Audit{{ToolID: "beta", Kind: model.IssueMissing, Field: "category"}}, nil
}

func (m *mockDependencies) Explain(_ context.Context, toolID, _ string) (ranking.Explanation, error) {
	if m.period == nil {
		return ranking.Explanation{}, repository.ErrNotFound
	}
	e, ok := m.period.Find(toolID)
	if !ok {
		return ranking.Explanation{}, repository.ErrNotFound
	}
	return ranking.Explanation{ToolID: e.ToolID, Position: e.Position, Overall: e.Overall}, nil
}

func (m *mockDependencies) ClosePeriod(_ context.Context, asOf time.Time) (*ranking.Period, error) {
	m.closedAt = asOf
	if m.closeErr != nil {
		return nil, m.closeErr
	}
	return &ranking.Period{ID: service.PeriodID(asOf, service.GranularityWeek), AsOf: asOf, Entries: make([]ranking.Entry, 2)}, nil
}

func (m *mockDependencies) RecomputePeriod(_ context.Context, periodID string) (*ranking.Period, error) {
	m.recompute = periodID
	switch {
	case m.period == nil:
		return nil, repository.ErrNotFound
	case periodID == m.period.ID:
		return m.period, nil
	case periodID == "2026-W41":
		return nil, fmt.Errorf("%w: %s", service.ErrNotCurrent, periodID)
	default:
		return nil, fmt.Errorf("%w: %s", repository.ErrNotFound, periodID)
	}
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func (m *mockStatsProvider) Algorithms() []string {
	return []string{"v7.1", "v7.6"}
}

func newDeps() *mockDependencies {
	return &mockDependencies{
		rows: []repository.Standing{
			{ToolID: "alpha", Name: "Alpha", Overall: 81.5},
			{ToolID: "beta", Name: "Beta", Overall: 64.25},
		},
		period: &ranking.Period{
			ID:      "2026-W42",
			Version: "v7.6",
			AsOf:    fixedNow,
			Entries: []ranking.Entry{
				{ToolID: "alpha", Name: "Alpha", Position: 1, Overall: 81.5},
				{ToolID: "beta", Name: "Beta", Position: 2, Overall: 64.25},
			},
		},
	}
}

func serve(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestServer_Routes(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := newDeps()
		server := api.NewServer(deps, &mockStatsProvider{stats: map[string]interface{}{"started": true}}, 10,
			api.WithClock(func() time.Time { return fixedNow }))
		mux := http.NewServeMux()
		server.Register(mux)

		Convey("When probing health and metrics", func() {
			health := serve(mux, http.MethodGet, "/healthz", "")
			metrics := serve(mux, http.MethodGet, "/metrics", "")

			Convey("Then both answer", func() {
				So(health.Code, ShouldEqual, http.StatusOK)
				So(health.Body.String(), ShouldContainSubstring, `"ok"`)
				So(metrics.Code, ShouldEqual, http.StatusOK)
			})
		})

		Convey("When reading stats", func() {
			w := serve(mux, http.MethodGet, "/stats", "")

			Convey("Then the provider's map and algorithms are returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"service":{"started":true}`)
				So(w.Body.String(), ShouldContainSubstring, `"algorithms":["v7.1","v7.6"]`)
			})
		})

		Convey("When reading standings", func() {
			top := serve(mux, http.MethodGet, "/standings?limit=1", "")
			all := serve(mux, http.MethodGet, "/standings", "")
			bad := serve(mux, http.MethodGet, "/standings?limit=0", "")
			tooMany := serve(mux, http.MethodGet, "/standings?limit=11", "")

			Convey("Then limits are honoured and validated", func() {
				var rows []repository.Standing
				So(top.Code, ShouldEqual, http.StatusOK)
				So(json.Unmarshal(top.Body.Bytes(), &rows), ShouldBeNil)
				So(rows, ShouldHaveLength, 1)
				So(rows[0].ToolID, ShouldEqual, "alpha")

				So(json.Unmarshal(all.Body.Bytes(), &rows), ShouldBeNil)
				So(rows, ShouldHaveLength, 2)

				So(bad.Code, ShouldEqual, http.StatusBadRequest)
				So(tooMany.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When reading one standing", func() {
			found := serve(mux, http.MethodGet, "/standings/beta", "")
			missing := serve(mux, http.MethodGet, "/standings/zeta", "")

			Convey("Then known tools resolve and unknown ones are 404", func() {
				So(found.Code, ShouldEqual, http.StatusOK)
				So(found.Body.String(), ShouldContainSubstring, `"position":2`)
				So(missing.Code, ShouldEqual, http.StatusNotFound)
				So(missing.Body.String(), ShouldContainSubstring, "not_found")
			})
		})

		Convey("When reading rankings", func() {
			cur := serve(mux, http.MethodGet, "/rankings?limit=1", "")
			byID := serve(mux, http.MethodGet, "/rankings/2026-W42", "")
			unknown := serve(mux, http.MethodGet, "/rankings/2020-W01", "")

			Convey("Then periods are returned with their total", func() {
				So(cur.Code, ShouldEqual, http.StatusOK)
				var body struct {
					PeriodID string          `json:"period_id"`
					Total    int             `json:"total"`
					Entries  []ranking.Entry `json:"entries"`
				}
				So(json.Unmarshal(cur.Body.Bytes(), &body), ShouldBeNil)
				So(body.PeriodID, ShouldEqual, "2026-W42")
				So(body.Total, ShouldEqual, 2)
				So(body.Entries, ShouldHaveLength, 1)

				So(byID.Code, ShouldEqual, http.StatusOK)
				So(unknown.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When there is no current period", func() {
			deps.period = nil
			w := serve(mux, http.MethodGet, "/rankings", "")

			Convey("Then it is a 404", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When explaining a tool", func() {
			w := serve(mux, http.MethodGet, "/explain/alpha", "")

			Convey("Then the explanation is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"tool_id":"alpha"`)
			})
		})

		Convey("When listing periods and audits", func() {
			ids := serve(mux, http.MethodGet, "/periods", "")
			audit := serve(mux, http.MethodGet, "/periods/2026-W42/audit", "")

			Convey("Then both are JSON arrays", func() {
				So(ids.Body.String(), ShouldContainSubstring, `["2026-W42"]`)
				So(audit.Code, ShouldEqual, http.StatusOK)
				So(audit.Body.String(), ShouldContainSubstring, `"kind":"missing"`)
			})
		})

		Convey("When an unknown path is requested", func() {
			w := serve(mux, http.MethodGet, "/unknown", "")

			Convey("Then it is a 404", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestServer_Events(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := newDeps()
		server := api.NewServer(deps, &mockStatsProvider{}, 10)
		mux := http.NewServeMux()
		server.Register(mux)

		Convey("When a valid event is posted", func() {
			w := serve(mux, http.MethodPost, "/events",
				`{"tool_id":"alpha","type":"Funding","raw_importance":12.5,"ts":"2026-10-11T08:00:00Z"}`)

			Convey("Then it is accepted with a generated id", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(w.Body.String(), ShouldContainSubstring, `"event_id":"generated"`)
				So(deps.ingested, ShouldHaveLength, 1)
				So(deps.ingested[0].Type, ShouldEqual, model.EventFunding)
				So(deps.ingested[0].RawImportance, ShouldEqual, 12.5)
			})
		})

		Convey("When the body is malformed or incomplete", func() {
			garbage := serve(mux, http.MethodPost, "/events", `{`)
			noImportance := serve(mux, http.MethodPost, "/events", `{"tool_id":"alpha","type":"launch"}`)
			badTS := serve(mux, http.MethodPost, "/events", `{"tool_id":"alpha","type":"launch","raw_importance":1,"ts":"yesterday"}`)

			Convey("Then each is a 400", func() {
				So(garbage.Code, ShouldEqual, http.StatusBadRequest)
				So(noImportance.Code, ShouldEqual, http.StatusBadRequest)
				So(badTS.Code, ShouldEqual, http.StatusBadRequest)
				So(deps.ingested, ShouldBeEmpty)
			})
		})

		Convey("When the service reports outcomes", func() {
			body := `{"event_id":"e-1","tool_id":"alpha","type":"launch","raw_importance":1}`

			deps.ingestErr = service.ErrDuplicateEvent
			dup := serve(mux, http.MethodPost, "/events", body)
			deps.ingestErr = fmt.Errorf("%w: event: unknown type", service.ErrInvalidEvent)
			invalid := serve(mux, http.MethodPost, "/events", body)
			deps.ingestErr = service.ErrQueueFull
			full := serve(mux, http.MethodPost, "/events", body)

			Convey("Then they map to 200, 400 and 429", func() {
				So(dup.Code, ShouldEqual, http.StatusOK)
				So(dup.Body.String(), ShouldContainSubstring, `"duplicate":true`)
				So(invalid.Code, ShouldEqual, http.StatusBadRequest)
				So(full.Code, ShouldEqual, http.StatusTooManyRequests)
				So(full.Body.String(), ShouldContainSubstring, "backpressure")
			})
		})
	})

	Convey("Given a server limited to one event", t, func() {
		deps := newDeps()
		server := api.NewServer(deps, &mockStatsProvider{}, 10, api.WithRateLimit(0.001, 1))
		mux := http.NewServeMux()
		server.Register(mux)
		body := `{"tool_id":"alpha","type":"launch","raw_importance":1}`

		Convey("When two events arrive back to back", func() {
			first := serve(mux, http.MethodPost, "/events", body)
			second := serve(mux, http.MethodPost, "/events", body)

			Convey("Then the second is rate limited", func() {
				So(first.Code, ShouldEqual, http.StatusAccepted)
				So(second.Code, ShouldEqual, http.StatusTooManyRequests)
				So(second.Body.String(), ShouldContainSubstring, "rate_limited")
			})
		})
	})
}

func TestServer_ClosePeriod(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := newDeps()
		server := api.NewServer(deps, &mockStatsProvider{}, 10,
			api.WithClock(func() time.Time { return fixedNow }))
		mux := http.NewServeMux()
		server.Register(mux)

		Convey("When closing without a body", func() {
			w := serve(mux, http.MethodPost, "/periods/close", "")

			Convey("Then the clock's period is closed", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(deps.closedAt.Equal(fixedNow), ShouldBeTrue)
				So(w.Body.String(), ShouldContainSubstring, `"period_id":"2026-W42"`)
			})
		})

		Convey("When closing with an explicit as_of", func() {
			w := serve(mux, http.MethodPost, "/periods/close", `{"as_of":"2026-10-19T00:00:00Z"}`)

			Convey("Then that period is closed", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(w.Body.String(), ShouldContainSubstring, `"period_id":"2026-W43"`)
			})
		})

		Convey("When the period already exists or as_of is malformed", func() {
			deps.closeErr = fmt.Errorf("%w: 2026-W42", repository.ErrPeriodExists)
			exists := serve(mux, http.MethodPost, "/periods/close", "")
			deps.closeErr = nil
			bad := serve(mux, http.MethodPost, "/periods/close", `{"as_of":"monday"}`)

			Convey("Then they are 409 and 400", func() {
				So(exists.Code, ShouldEqual, http.StatusConflict)
				So(bad.Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestServer_RecomputePeriod(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := newDeps()
		server := api.NewServer(deps, &mockStatsProvider{}, 10)
		mux := http.NewServeMux()
		server.Register(mux)

		Convey("When recomputing the current period", func() {
			w := serve(mux, http.MethodPost, "/periods/2026-W42/recompute", "")

			Convey("Then it is replaced and summarized", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.recompute, ShouldEqual, "2026-W42")
				So(w.Body.String(), ShouldContainSubstring, `"period_id":"2026-W42"`)
				So(w.Body.String(), ShouldContainSubstring, `"tools":2`)
			})
		})

		Convey("When recomputing an older or unknown period", func() {
			older := serve(mux, http.MethodPost, "/periods/2026-W41/recompute", "")
			unknown := serve(mux, http.MethodPost, "/periods/1999-W01/recompute", "")

			Convey("Then they are 409 and 404", func() {
				So(older.Code, ShouldEqual, http.StatusConflict)
				So(unknown.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}
