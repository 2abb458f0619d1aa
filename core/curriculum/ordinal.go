package curriculum

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

type ScopeKind int

const (
	ProgramPhases ScopeKind = iota + 1
	PhaseBooks
	BookLessons
)

func (k ScopeKind) String() string {
	switch k {
	case ProgramPhases:
		return "program phases"
	case PhaseBooks:
		return "phase books"
	case BookLessons:
		return "book lessons"
	}
	return "unknown scope"
}

// Scope is a set of siblings ordered under the same parent.
type Scope struct {
	Kind     ScopeKind
	ParentID string
}

func PhasesOf(programID string) Scope { return Scope{Kind: ProgramPhases, ParentID: programID} }
func BooksOf(phaseID string) Scope    { return Scope{Kind: PhaseBooks, ParentID: phaseID} }
func LessonsOf(bookID string) Scope   { return Scope{Kind: BookLessons, ParentID: bookID} }

func (s Scope) String() string {
	return fmt.Sprintf("%s of %q", s.Kind, s.ParentID)
}

// OrderStore is the part of the storage used to order siblings.
// Its methods must be called within Repository.Atomic, after LockScope.
type OrderStore interface {
	// LockScope locks the parent of scope until the end of the transaction,
	// so that concurrent writers of the same scope are serialized.
	// Returns a core.ErrParentNotFound error if the parent does not exist.
	LockScope(ctx context.Context, scope Scope) error
	// MaxOrder returns the greatest order in scope; ok is false when scope is empty.
	MaxOrder(ctx context.Context, scope Scope) (max int, ok bool, err error)
	// OrderTaken reports whether a child of scope other than exceptID holds order.
	OrderTaken(ctx context.Context, scope Scope, order int, exceptID string) (bool, error)
}

// NextOrder returns the order following the last child of scope, or 0 if scope is empty.
// Gaps left by deletions are never filled.
func NextOrder(ctx context.Context, store OrderStore, scope Scope) (int, error) {
	max, ok, err := store.MaxOrder(ctx, scope)
	if err != nil {
		return 0, errors.Wrapf(err, "getting max order of %s", scope)
	}
	if !ok {
		return 0, nil
	}
	return max + 1, nil
}

// AssignOrder validates the explicit order of a new child of scope, or appends it when explicit is nil.
func AssignOrder(ctx context.Context, store OrderStore, scope Scope, explicit *int) (int, error) {
	if explicit == nil {
		return NextOrder(ctx, store, scope)
	}
	if err := checkFree(ctx, store, scope, *explicit, ""); err != nil {
		return 0, err
	}
	return *explicit, nil
}

// CheckReorder validates moving childID of scope from order current to newOrder.
// Siblings are never shifted: taking the order of a sibling is an error.
// changed is false when the child already holds newOrder.
func CheckReorder(ctx context.Context, store OrderStore, scope Scope, childID string, current, newOrder int) (changed bool, err error) {
	if err = ValidateOrder(newOrder); err != nil {
		return false, err
	}
	if current == newOrder {
		return false, nil
	}
	if err = checkFree(ctx, store, scope, newOrder, childID); err != nil {
		return false, err
	}
	return true, nil
}

// ValidateOrder checks that order is a valid position.
func ValidateOrder(order int) error {
	if order < 0 {
		return errors.Wrapf(ErrInvalidOrderValue, "got %d", order)
	}
	return nil
}

func checkFree(ctx context.Context, store OrderStore, scope Scope, order int, exceptID string) error {
	if err := ValidateOrder(order); err != nil {
		return err
	}
	taken, err := store.OrderTaken(ctx, scope, order, exceptID)
	if err != nil {
		return errors.Wrapf(err, "checking order of %s", scope)
	}
	if taken {
		return errors.Wrapf(ErrDuplicateOrder, "order %d of %s", order, scope)
	}
	return nil
}
