package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"monthplan/internal/capture"
	"monthplan/internal/dialog"
	"monthplan/internal/filter"
	"monthplan/internal/grid"
	"monthplan/internal/ics"
	"monthplan/internal/interact"
	appLog "monthplan/internal/log"
	"monthplan/internal/model"
	"monthplan/internal/planner"
	"monthplan/internal/segment"
	"monthplan/internal/store"
)

// maxImportBytes caps uploaded calendars.
const maxImportBytes = 4 << 20

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, dialog.ErrNameRequired), errors.Is(err, model.ErrInvalidSpan):
		return http.StatusUnprocessableEntity
	case errors.Is(err, dialog.ErrNotOpen), errors.Is(err, store.ErrDuplicateID):
		return http.StatusConflict
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, interact.ErrUnknownEvent),
		errors.Is(err, filter.ErrInvalidTimeWindow),
		errors.Is(err, model.ErrUnknownCategory):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		appLog.Error("request failed", err, "method", r.Method, "path", r.URL.Path)
	}
	writeError(w, status, err.Error())
}

func (s *Server) handleView(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.planner.View(s.today()))
}

func (s *Server) handleTasks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.planner.Store().List())
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.planner.Remove(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	appLog.Info("task removed", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

// pointerRequest is one pointer event from the page. The day under the
// pointer is given either as index or as x/y with the bounding rect of the
// day cells, which is resolved on the server with the current grid.
type pointerRequest struct {
	Type    string     `json:"type"`
	Index   *int       `json:"index,omitempty"`
	Button  int        `json:"button,omitempty"`
	TaskID  string     `json:"taskId,omitempty"`
	Side    string     `json:"side,omitempty"`
	Pointer *int       `json:"pointer,omitempty"`
	X       *float64   `json:"x,omitempty"`
	Y       *float64   `json:"y,omitempty"`
	Rect    *grid.Rect `json:"rect,omitempty"`
}

type pointerResponse struct {
	Dialog    *interact.Range   `json:"dialog,omitempty"`
	Committed *segment.Override `json:"committed,omitempty"`
	View      planner.View      `json:"view"`
}

func (s *Server) handlePointer(w http.ResponseWriter, r *http.Request) {
	var req pointerRequest
	err := decodeJSON(r, &req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var eff interact.Effect
	switch kind := strings.ToLower(req.Type); kind {
	case "segment-down", "handle-down":
		eff, err = s.dispatchOnTask(r, kind, req)
	default:
		var ev interact.Event
		if ev, err = s.toEvent(req); err == nil {
			eff, err = s.planner.Dispatch(r.Context(), ev)
		}
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pointerResponse{
		Dialog:    eff.OpenDialog,
		Committed: eff.Committed,
		View:      s.planner.View(s.today()),
	})
}

func (s *Server) toEvent(req pointerRequest) (interact.Event, error) {
	switch strings.ToLower(req.Type) {
	case "down":
		i, err := s.dayIndex(req)
		return interact.DayDown{Index: i, Button: req.Button}, err
	case "enter":
		i, err := s.dayIndex(req)
		return interact.DayEnter{Index: i}, err
	case "dblclick":
		i, err := s.dayIndex(req)
		return interact.DayDoubleClick{Index: i}, err
	case "move":
		i, err := s.pointerIndex(req)
		return interact.PointerMove{Pointer: i}, err
	case "up":
		return interact.PointerUp{}, nil
	case "cancel":
		return interact.Cancel{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", interact.ErrUnknownEvent, req.Type)
	}
}

// dispatchOnTask starts a move or resize. The task's segment is resolved
// by the planner in the same step as the dispatch.
func (s *Server) dispatchOnTask(r *http.Request, kind string, req pointerRequest) (interact.Effect, error) {
	p, err := s.pointerIndex(req)
	if err != nil {
		return interact.Effect{}, err
	}
	build := func(seg segment.Segment) interact.Event {
		return interact.SegmentDown{Segment: seg, Pointer: p}
	}
	if kind == "handle-down" {
		side, err := interact.ParseSide(req.Side)
		if err != nil {
			return interact.Effect{}, errors.Join(errBadRequest, err)
		}
		build = func(seg segment.Segment) interact.Event {
			return interact.HandleDown{Segment: seg, Side: side, Pointer: p}
		}
	}
	return s.planner.DispatchOnTask(r.Context(), req.TaskID, s.today(), build)
}

func (s *Server) dayIndex(req pointerRequest) (int, error) {
	if req.Index != nil {
		return *req.Index, nil
	}
	return s.cellAt(req)
}

func (s *Server) pointerIndex(req pointerRequest) (int, error) {
	if req.Pointer != nil {
		return *req.Pointer, nil
	}
	return s.dayIndex(req)
}

func (s *Server) cellAt(req pointerRequest) (int, error) {
	if req.X == nil || req.Y == nil || req.Rect == nil {
		return 0, fmt.Errorf("%w: event needs index or x, y and rect", errBadRequest)
	}
	i, ok := s.planner.Grid().CellAt(*req.Rect, *req.X, *req.Y)
	if !ok {
		return 0, fmt.Errorf("%w: empty grid rect", errBadRequest)
	}
	return i, nil
}

func (s *Server) handleGetFilters(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.planner.Filters())
}

// filterPatch changes only the fields that are present.
type filterPatch struct {
	Categories     []string `json:"categories,omitempty"`
	ToggleCategory string   `json:"toggleCategory,omitempty"`
	TimeWeeks      *int     `json:"timeWeeks,omitempty"`
	Search         *string  `json:"search,omitempty"`
}

func (s *Server) handlePatchFilters(w http.ResponseWriter, r *http.Request) {
	var patch filterPatch
	if err := decodeJSON(r, &patch); err != nil {
		s.fail(w, r, err)
		return
	}

	st, err := s.planner.UpdateFilters(func(f *filter.State) error {
		if patch.Categories != nil {
			cats := make([]model.Category, 0, len(patch.Categories))
			for _, raw := range patch.Categories {
				c, err := model.ParseCategory(raw)
				if err != nil {
					return err
				}
				cats = append(cats, c)
			}
			f.Categories = cats
		}
		if patch.ToggleCategory != "" {
			c, err := model.ParseCategory(patch.ToggleCategory)
			if err != nil {
				return err
			}
			f.ToggleCategory(c)
		}
		if patch.TimeWeeks != nil {
			if err := f.SetTimeWeeks(*patch.TimeWeeks); err != nil {
				return err
			}
		}
		if patch.Search != nil {
			f.SetSearch(*patch.Search)
		}
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type dialogSaveRequest struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

func (s *Server) handleDialogSave(w http.ResponseWriter, r *http.Request) {
	var req dialogSaveRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	var cat model.Category
	if req.Category != "" {
		c, err := model.ParseCategory(req.Category)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		cat = c
	}

	t, err := s.planner.SaveDialog(r.Context(), req.Name, cat)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleDialogCancel(w http.ResponseWriter, _ *http.Request) {
	s.planner.CancelDialog()
	w.WriteHeader(http.StatusNoContent)
}

// handleImport imports the posted calendar, or refreshes the configured
// feeds when the body is empty.
//
//	POST /api/import?id=holidays&category=completed   (body: text/calendar)
//	POST /api/import                                   (refresh feeds)
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes+1))
	if err != nil {
		s.fail(w, r, errors.Join(errBadRequest, err))
		return
	}
	if len(body) > maxImportBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "calendar too large")
		return
	}

	g := s.planner.Grid()
	if len(body) == 0 {
		results, err := s.importer.Refresh(r.Context(), ics.FeedsFromConfig(s.cfg.Imports), g.First(), g.Last())
		if err != nil && len(results) == 0 && len(s.cfg.Imports) > 0 {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, results)
		return
	}

	q := r.URL.Query()
	feed := ics.Feed{ID: q.Get("id"), Category: model.CategoryToDo}
	if feed.ID == "" {
		feed.ID = "upload"
	}
	if raw := q.Get("category"); raw != "" {
		c, err := model.ParseCategory(raw)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		feed.Category = c
	}

	res, err := s.importer.ImportBody(r.Context(), feed, body, g.First(), g.Last())
	if err != nil {
		s.fail(w, r, errors.Join(errBadRequest, err))
		return
	}
	writeJSON(w, http.StatusOK, []ics.ImportResult{res})
}

func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="monthplan.ics"`)
	_, _ = io.WriteString(w, ics.Export(s.planner.Store().List(), s.now()))
}

// handlePreview serves the last PNG snapshot, capturing one first when none
// exists or ?refresh=1 is given.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	opts := s.snapshotOptions()

	s.snapMu.Lock()
	_, statErr := os.Stat(opts.OutputPath)
	if statErr != nil || r.URL.Query().Get("refresh") == "1" {
		if err := s.snapshot(r.Context(), opts); err != nil {
			s.snapMu.Unlock()
			appLog.Error("snapshot failed", err, "url", opts.URL)
			writeError(w, http.StatusBadGateway, "snapshot failed")
			return
		}
	}
	s.snapMu.Unlock()

	w.Header().Set("Cache-Control", "no-store")
	http.ServeFile(w, r, opts.OutputPath)
}

func (s *Server) snapshotOptions() capture.Options {
	return capture.OptionsFromConfig(s.cfg.Snapshot)
}
