package domain

import (
	"errors"
	"fmt"
)

type LoopType string

const (
	// EngineLoop pulls jobs from the queue and drives them to their terminal event.
	EngineLoop LoopType = "engine"

	// ReaperLoop deletes scope namespaces idle for longer than the threshold.
	ReaperLoop LoopType = "reaper"
)

func (lt LoopType) String() string {
	return string(lt)
}

func (lt LoopType) IsKnown() bool {
	switch lt {
	case EngineLoop, ReaperLoop:
		return true
	default:
		return false
	}
}

func AsLoopType(s string) (LoopType, error) {
	l := LoopType(s)
	if l.IsKnown() {
		return l, nil
	}
	return l, fmt.Errorf(`%w: "%s"`, ErrUnknownLoopType, s)
}

var ErrUnknownLoopType = errors.New("unknown loop type")
