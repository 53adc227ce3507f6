package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// DensityMode controls how much of the buffered room capacity is filled.
type DensityMode string

const (
	DensitySparse DensityMode = "sparse"
	DensityDense  DensityMode = "dense"
)

// ParseDensityMode accepts "sparse" or "dense" in any case.
func ParseDensityMode(raw string) (DensityMode, error) {
	switch DensityMode(strings.ToLower(strings.TrimSpace(raw))) {
	case DensitySparse:
		return DensitySparse, nil
	case DensityDense:
		return DensityDense, nil
	default:
		return "", fmt.Errorf("unknown density mode %q", raw)
	}
}

// CapacityPolicy is the run configuration applied to every room.
type CapacityPolicy struct {
	BufferSeats int         `json:"bufferSeats"`
	Density     DensityMode `json:"density"`
}

var (
	ErrRoomIDRequired     = errors.New("room id is required")
	ErrRoomCapacityTooLow = errors.New("room capacity must be positive")
)

// Room is an examination room. All fields are fixed for the duration of a run.
type Room struct {
	ID          string `json:"id"`
	Block       string `json:"block"`
	RawCapacity int    `json:"rawCapacity"`
	OrderingKey int    `json:"orderingKey"`
}

// NewRoom validates a room row and derives its ordering key. Rooms in
// numericBlock are numbered directly ("101"); rooms elsewhere carry the
// number after the last separator ("LT-204").
func NewRoom(id, block string, rawCapacity int, numericBlock string) (Room, error) {
	id = strings.TrimSpace(id)
	block = strings.TrimSpace(block)
	if id == "" {
		return Room{}, ErrRoomIDRequired
	}
	if rawCapacity <= 0 {
		return Room{}, fmt.Errorf("room %s: %w", id, ErrRoomCapacityTooLow)
	}
	return Room{
		ID:          id,
		Block:       block,
		RawCapacity: rawCapacity,
		OrderingKey: orderingKey(id, block, numericBlock),
	}, nil
}

// UsableCapacity returns the seats left for students once the buffer and the
// density policy are applied. Zero means the room is unusable for the run.
func (r Room) UsableCapacity(policy CapacityPolicy) int {
	effective := r.RawCapacity - policy.BufferSeats
	if effective <= 0 {
		return 0
	}
	usable := effective
	if policy.Density == DensitySparse {
		usable = effective / 2
	}
	if usable <= 0 {
		return 0
	}
	return usable
}

func orderingKey(id, block, numericBlock string) int {
	if block == numericBlock {
		if n, err := strconv.Atoi(id); err == nil {
			return n
		}
	}
	if idx := strings.LastIndex(id, "-"); idx >= 0 {
		if n, err := strconv.Atoi(strings.TrimSpace(id[idx+1:])); err == nil {
			return n
		}
	}
	return trailingNumber(id)
}

// trailingNumber is the fallback for identifiers that follow neither
// convention; rooms without any digits sort first.
func trailingNumber(id string) int {
	end := len(id)
	start := end
	for start > 0 && unicode.IsDigit(rune(id[start-1])) {
		start--
	}
	if start == end {
		return 0
	}
	n, err := strconv.Atoi(id[start:end])
	if err != nil {
		return 0
	}
	return n
}
