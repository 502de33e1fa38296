package common

import "github.com/sincaw/chred/pkg/scan"

// EntityAcceptor receives entities of completed sessions
type EntityAcceptor interface {
	Accept(e *scan.Entity) error
}
