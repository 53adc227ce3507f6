package service

import (
	"sort"

	"github.com/noah-isme/exam-seating-api/internal/models"
)

// DefaultPreferredBlocks is the block order tried before the global fallback.
var DefaultPreferredBlocks = []string{"B1", "B2"}

// SeatAllocator seats one course roster into a set of candidate rooms.
type SeatAllocator struct {
	preferredBlocks []string
}

// NewSeatAllocator builds an allocator trying blocks in the given order.
func NewSeatAllocator(preferredBlocks []string) *SeatAllocator {
	if len(preferredBlocks) == 0 {
		preferredBlocks = DefaultPreferredBlocks
	}
	blocks := make([]string, len(preferredBlocks))
	copy(blocks, preferredBlocks)
	return &SeatAllocator{preferredBlocks: blocks}
}

// Blocks returns the preferred block order.
func (a *SeatAllocator) Blocks() []string {
	blocks := make([]string, len(a.preferredBlocks))
	copy(blocks, a.preferredBlocks)
	return blocks
}

type candidateRoom struct {
	room   models.Room
	usable int
}

// Allocate returns the rooms used for roster and the contiguous slice each one
// receives. The boolean is false when the roster cannot be seated in full;
// no partial allocation is ever returned. candidates is not modified.
func (a *SeatAllocator) Allocate(roster []string, candidates []models.Room, policy models.CapacityPolicy) ([]models.RoomAllocation, bool) {
	pool := make([]candidateRoom, 0, len(candidates))
	total := 0
	for _, room := range candidates {
		usable := room.UsableCapacity(policy)
		if usable <= 0 {
			continue
		}
		pool = append(pool, candidateRoom{room: room, usable: usable})
		total += usable
	}
	if total < len(roster) {
		return nil, false
	}

	for _, block := range a.preferredBlocks {
		blockRooms := make([]candidateRoom, 0, len(pool))
		blockTotal := 0
		for _, candidate := range pool {
			if candidate.room.Block == block {
				blockRooms = append(blockRooms, candidate)
				blockTotal += candidate.usable
			}
		}
		if blockTotal < len(roster) {
			continue
		}
		sort.SliceStable(blockRooms, func(i, j int) bool {
			return blockRooms[i].room.OrderingKey < blockRooms[j].room.OrderingKey
		})
		allocations, _ := fillRooms(roster, blockRooms)
		return allocations, true
	}

	ordered := make([]candidateRoom, len(pool))
	copy(ordered, pool)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].usable > ordered[j].usable
	})
	allocations, seated := fillRooms(roster, ordered)
	if seated < len(roster) {
		return nil, false
	}
	return allocations, true
}

// fillRooms walks rooms in order handing each min(usable, remaining) students.
func fillRooms(roster []string, rooms []candidateRoom) ([]models.RoomAllocation, int) {
	allocations := make([]models.RoomAllocation, 0, len(rooms))
	index := 0
	for _, candidate := range rooms {
		if index >= len(roster) {
			break
		}
		count := candidate.usable
		if remaining := len(roster) - index; remaining < count {
			count = remaining
		}
		students := make([]string, count)
		copy(students, roster[index:index+count])
		allocations = append(allocations, models.RoomAllocation{
			Room:     candidate.room,
			Usable:   candidate.usable,
			Students: students,
		})
		index += count
	}
	return allocations, index
}
