package curriculum

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

// orderMap is an OrderStore of a single scope: child ID -> order.
type orderMap map[string]int

func (m orderMap) LockScope(context.Context, Scope) error { return nil }

func (m orderMap) MaxOrder(context.Context, Scope) (int, bool, error) {
	max, ok := 0, false
	for _, o := range m {
		if !ok || o > max {
			max, ok = o, true
		}
	}
	return max, ok, nil
}

func (m orderMap) OrderTaken(_ context.Context, _ Scope, order int, exceptID string) (bool, error) {
	for id, o := range m {
		if o == order && id != exceptID {
			return true, nil
		}
	}
	return false, nil
}

func intPtr(i int) *int { return &i }

func TestAssignOrder(t *testing.T) {
	ctx := context.Background()
	scope := LessonsOf("book")

	tests := []struct {
		name     string
		store    orderMap
		explicit *int
		want     int
		wantErr  error
	}{
		{name: "empty scope", store: orderMap{}, want: 0},
		{name: "append after max", store: orderMap{"a": 0, "b": 1}, want: 2},
		{name: "gaps are never filled", store: orderMap{"a": 0, "b": 4}, want: 5},
		{name: "explicit free order", store: orderMap{"a": 0, "b": 4}, explicit: intPtr(2), want: 2},
		{name: "explicit order in empty scope", store: orderMap{}, explicit: intPtr(3), want: 3},
		{name: "explicit taken order", store: orderMap{"a": 0, "b": 4}, explicit: intPtr(4), wantErr: ErrDuplicateOrder},
		{name: "explicit negative order", store: orderMap{}, explicit: intPtr(-1), wantErr: ErrInvalidOrderValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AssignOrder(ctx, tt.store, scope, tt.explicit)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			if assert.NoError(t, err) {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestCheckReorder(t *testing.T) {
	ctx := context.Background()
	scope := PhasesOf("prog")
	store := orderMap{"a": 0, "b": 1, "c": 2}

	tests := []struct {
		name        string
		childID     string
		current     int
		newOrder    int
		wantChanged bool
		wantErr     error
	}{
		{name: "same order is a no-op", childID: "b", current: 1, newOrder: 1},
		{name: "free order", childID: "b", current: 1, newOrder: 10, wantChanged: true},
		{name: "order of a sibling", childID: "b", current: 1, newOrder: 2, wantErr: ErrDuplicateOrder},
		{name: "negative order", childID: "b", current: 1, newOrder: -3, wantErr: ErrInvalidOrderValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changed, err := CheckReorder(ctx, store, scope, tt.childID, tt.current, tt.newOrder)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			if assert.NoError(t, err) {
				assert.Equal(t, tt.wantChanged, changed)
			}
		})
	}
}

func TestScope_String(t *testing.T) {
	assert.Equal(t, `book lessons of "b1"`, LessonsOf("b1").String())
	assert.Equal(t, `phase books of "p1"`, BooksOf("p1").String())
	assert.Equal(t, `program phases of "x"`, PhasesOf("x").String())
}
