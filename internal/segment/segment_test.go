package segment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monthplan/internal/grid"
	"monthplan/internal/model"
)

// June 2024, Sunday start: index 0 is May 26, 42 days.
var g = grid.Build(model.NewDate(2024, time.June, 15), time.Sunday)

func at(i int) model.Date { return g.IndexToDate(i) }

func span(id string, si, ei int) model.Task {
	return model.Task{ID: id, Name: id, Category: model.CategoryReview, Start: at(si), End: at(ei)}
}

func TestSplitTask_SingleRow(t *testing.T) {
	segs, ok := SplitTask(span("a", 8, 10), g)
	require.True(t, ok)
	require.Len(t, segs, 1)

	s := segs[0]
	assert.Equal(t, 1, s.Row)
	assert.Equal(t, 8, s.StartIndex)
	assert.Equal(t, 10, s.EndIndex)
	assert.Equal(t, "#7ed321", s.Color)
	assert.True(t, s.IsFirst())
	assert.True(t, s.IsLast())
}

func TestSplitTask_MultiWeek(t *testing.T) {
	segs, ok := SplitTask(span("a", 5, 22), g)
	require.True(t, ok)
	require.Len(t, segs, 4)

	want := [][3]int{{0, 5, 6}, {1, 7, 13}, {2, 14, 20}, {3, 21, 22}}
	for i, w := range want {
		assert.Equal(t, w[0], segs[i].Row)
		assert.Equal(t, w[1], segs[i].StartIndex)
		assert.Equal(t, w[2], segs[i].EndIndex)
		assert.Equal(t, 5, segs[i].FullStartIndex)
		assert.Equal(t, 22, segs[i].FullEndIndex)
	}
	assert.True(t, segs[0].IsFirst())
	assert.False(t, segs[0].IsLast())
	assert.True(t, segs[3].IsLast())
}

func TestSplitTask_OffGridSkipped(t *testing.T) {
	task := model.Task{ID: "x", Start: g.First().AddDays(-1), End: at(3)}
	_, ok := SplitTask(task, g)
	assert.False(t, ok)

	task = model.Task{ID: "y", Start: at(40), End: g.Last().AddDays(1)}
	_, ok = SplitTask(task, g)
	assert.False(t, ok)
}

func TestSplit_SegmentsStayInsideRowAndSpan(t *testing.T) {
	var tasks []model.Task
	for si := 0; si < g.Len(); si += 3 {
		for ei := si; ei < g.Len(); ei += 5 {
			tasks = append(tasks, span("t", si, ei))
		}
	}

	for _, s := range Split(tasks, g) {
		rowStart, rowEnd := g.RowBounds(s.Row)
		assert.GreaterOrEqual(t, s.StartIndex, rowStart)
		assert.LessOrEqual(t, s.EndIndex, rowEnd)
		assert.LessOrEqual(t, s.StartIndex, s.EndIndex)
		assert.GreaterOrEqual(t, s.StartIndex, s.FullStartIndex)
		assert.LessOrEqual(t, s.EndIndex, s.FullEndIndex)
		assert.Equal(t, grid.Place(s.StartIndex, s.EndIndex, s.Row), s.Placement)
	}
}

func TestBuild_PreviewRecomputesAllRows(t *testing.T) {
	tasks := []model.Task{span("moving", 5, 6), span("still", 1, 2)}
	preview := &Override{TaskID: "moving", Start: at(12), End: at(15)}

	segs, offGrid := Build(tasks, g, preview)
	assert.Zero(t, offGrid)
	require.Len(t, segs, 3)

	// The preview lands on rows the committed task never touched.
	assert.Equal(t, "moving", segs[0].TaskID)
	assert.Equal(t, 1, segs[0].Row)
	assert.Equal(t, 12, segs[0].StartIndex)
	assert.Equal(t, 13, segs[0].EndIndex)
	assert.Equal(t, 2, segs[1].Row)
	assert.Equal(t, 14, segs[1].StartIndex)
	assert.Equal(t, 15, segs[1].EndIndex)
	assert.True(t, segs[0].Preview)

	assert.Equal(t, "still", segs[2].TaskID)
	assert.False(t, segs[2].Preview)
}

func TestBuild_CountsOffGrid(t *testing.T) {
	tasks := []model.Task{
		span("on", 0, 1),
		{ID: "next month", Start: model.NewDate(2024, time.August, 1), End: model.NewDate(2024, time.August, 2)},
	}

	segs, offGrid := Build(tasks, g, nil)
	assert.Len(t, segs, 1)
	assert.Equal(t, 1, offGrid)
}
