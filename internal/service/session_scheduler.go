package service

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/noah-isme/exam-seating-api/internal/models"
)

type rosterAllocator interface {
	Allocate(roster []string, candidates []models.Room, policy models.CapacityPolicy) ([]models.RoomAllocation, bool)
}

// SessionScheduler drives the allocator across every date and session of a
// timetable, carrying courses that do not fit in the morning into the evening.
type SessionScheduler struct {
	allocator rosterAllocator
	logger    *zap.Logger
}

// NewSessionScheduler wires the scheduler.
func NewSessionScheduler(allocator rosterAllocator, logger *zap.Logger) *SessionScheduler {
	if allocator == nil {
		allocator = NewSeatAllocator(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionScheduler{allocator: allocator, logger: logger}
}

// roomPool is the set of rooms still free in the session being processed.
// Only the scheduler mutates it; the allocator sees copies.
type roomPool struct {
	rooms []models.Room
}

func newRoomPool(all []models.Room) *roomPool {
	rooms := make([]models.Room, len(all))
	copy(rooms, all)
	return &roomPool{rooms: rooms}
}

func (p *roomPool) snapshot() []models.Room {
	rooms := make([]models.Room, len(p.rooms))
	copy(rooms, p.rooms)
	return rooms
}

func (p *roomPool) consume(roomID string) {
	kept := p.rooms[:0]
	for _, room := range p.rooms {
		if room.ID != roomID {
			kept = append(kept, room)
		}
	}
	p.rooms = kept
}

type scheduledCourse struct {
	code    string
	roster  []string
	carried bool
}

// sessionRun accumulates the output of one Run call.
type sessionRun struct {
	input  models.SeatingInput
	result *models.SeatingResult
	rooms  map[string]bool
}

// Run seats every course of the timetable. The input is not modified and the
// output depends only on the input.
func (s *SessionScheduler) Run(input models.SeatingInput) *models.SeatingResult {
	run := &sessionRun{
		input: input,
		result: &models.SeatingResult{
			Assignments: []models.Assignment{},
			Overflow:    []models.OverflowRecord{},
			Warnings:    []string{},
		},
		rooms: make(map[string]bool),
	}
	for _, entry := range input.Timetable {
		s.runDate(run, entry)
	}
	run.result.Stats.RoomsUsed = len(run.rooms)
	return run.result
}

func (s *SessionScheduler) runDate(run *sessionRun, entry models.TimetableEntry) {
	morning := s.collectCourses(run, entry.Date, models.SessionMorning, entry.Morning, nil)
	carried := s.runSession(run, entry.Date, models.SessionMorning, morning, false)
	for i := range carried {
		carried[i].carried = true
	}
	if len(carried) > 0 {
		s.logger.Info("courses carried to evening",
			zap.String("date", entry.Date),
			zap.Strings("courses", courseCodes(carried)),
		)
	}
	run.result.Stats.CoursesCarried += len(carried)

	evening := s.collectCourses(run, entry.Date, models.SessionEvening, entry.Evening, carried)
	s.runSession(run, entry.Date, models.SessionEvening, append(evening, carried...), true)
}

// collectCourses resolves rosters for a session list, dropping duplicates,
// courses already carried into this session and courses with no students.
func (s *SessionScheduler) collectCourses(run *sessionRun, date string, session models.SessionType, codes []string, carried []scheduledCourse) []scheduledCourse {
	listed := make(map[string]bool, len(codes)+len(carried))
	for _, course := range carried {
		listed[course.code] = true
	}
	courses := make([]scheduledCourse, 0, len(codes))
	for _, code := range codes {
		if code == "" {
			continue
		}
		if listed[code] {
			run.warn("%s %s: course %s listed more than once", date, session, code)
			continue
		}
		listed[code] = true
		run.result.Stats.CoursesScheduled++

		roster, known := run.input.Courses[code]
		if !known {
			run.warn("%s %s: course %s has no roster", date, session, code)
		}
		if len(roster) == 0 {
			run.result.Stats.CoursesSkipped++
			continue
		}
		courses = append(courses, scheduledCourse{code: code, roster: roster})
	}
	return courses
}

// runSession seats courses largest first against a fresh pool of all rooms.
// It returns the courses that did not fit; in the final session of a date
// those become overflow records instead.
func (s *SessionScheduler) runSession(run *sessionRun, date string, session models.SessionType, courses []scheduledCourse, final bool) []scheduledCourse {
	if len(courses) == 0 {
		return nil
	}
	ordered := make([]scheduledCourse, len(courses))
	copy(ordered, courses)
	sort.SliceStable(ordered, func(i, j int) bool {
		return len(ordered[i].roster) > len(ordered[j].roster)
	})

	pool := newRoomPool(run.input.Rooms)
	var unseated []scheduledCourse
	for _, course := range ordered {
		allocations, ok := s.allocator.Allocate(course.roster, pool.snapshot(), run.input.Policy)
		if !ok {
			unseated = append(unseated, course)
			continue
		}
		for _, allocation := range allocations {
			pool.consume(allocation.Room.ID)
			run.rooms[allocation.Room.ID] = true
			run.result.Assignments = append(run.result.Assignments, models.Assignment{
				Date:        date,
				Session:     session,
				CourseCode:  course.code,
				RoomID:      allocation.Room.ID,
				Block:       allocation.Room.Block,
				Students:    allocation.Students,
				CarriedOver: course.carried,
			})
		}
		run.result.Stats.CoursesSeated++
		run.result.Stats.StudentsSeated += len(course.roster)
	}

	if !final {
		return unseated
	}
	for _, course := range unseated {
		s.logger.Warn("course left unseated",
			zap.String("date", date),
			zap.String("course", course.code),
			zap.Int("students", len(course.roster)),
		)
		run.result.Overflow = append(run.result.Overflow, models.OverflowRecord{
			Date:          date,
			Session:       session,
			CourseCode:    course.code,
			UnseatedCount: len(course.roster),
		})
		run.result.Stats.CoursesUnseated++
		run.result.Stats.StudentsUnseated += len(course.roster)
	}
	return nil
}

func (r *sessionRun) warn(format string, args ...any) {
	r.result.Warnings = append(r.result.Warnings, fmt.Sprintf(format, args...))
}

func courseCodes(courses []scheduledCourse) []string {
	codes := make([]string, 0, len(courses))
	for _, course := range courses {
		codes = append(codes, course.code)
	}
	return codes
}
