package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-seating-api/internal/models"
)

func newTestScheduler() *SessionScheduler {
	return NewSessionScheduler(NewSeatAllocator(nil), zap.NewNop())
}

func assignmentsFor(result *models.SeatingResult, session models.SessionType, course string) []models.Assignment {
	var out []models.Assignment
	for _, a := range result.Assignments {
		if a.Session == session && a.CourseCode == course {
			out = append(out, a)
		}
	}
	return out
}

func TestSessionSchedulerSeatsLargestFirst(t *testing.T) {
	input := models.SeatingInput{
		Rooms: exampleRooms(),
		Courses: map[string][]string{
			"CS101": makeRoster("S", 20),
			"MA101": makeRoster("M", 60),
		},
		Timetable: []models.TimetableEntry{{Date: "2024-05-02", Morning: []string{"CS101", "MA101"}}},
		Policy:    models.CapacityPolicy{BufferSeats: 5, Density: models.DensityDense},
	}

	result := newTestScheduler().Run(input)

	require.Len(t, result.Assignments, 3)
	assert.Equal(t, "MA101", result.Assignments[0].CourseCode, "largest roster seated first")
	assert.Equal(t, "A", result.Assignments[0].RoomID)
	assert.Equal(t, "B", result.Assignments[1].RoomID)
	assert.Equal(t, "CS101", result.Assignments[2].CourseCode)
	assert.Equal(t, "C", result.Assignments[2].RoomID)
	assert.Empty(t, result.Overflow)
	assert.Equal(t, 2, result.Stats.CoursesSeated)
	assert.Equal(t, 80, result.Stats.StudentsSeated)
	assert.Equal(t, 3, result.Stats.RoomsUsed)
}

func TestSessionSchedulerCarriesMorningFailureToEvening(t *testing.T) {
	input := models.SeatingInput{
		Rooms: exampleRooms(),
		Courses: map[string][]string{
			"BIG":   makeRoster("B", 100),
			"SMALL": makeRoster("S", 30),
			"EVE":   makeRoster("E", 10),
		},
		Timetable: []models.TimetableEntry{{
			Date:    "2024-05-02",
			Morning: []string{"BIG", "SMALL"},
			Evening: []string{"EVE"},
		}},
		Policy: models.CapacityPolicy{Density: models.DensityDense},
	}

	result := newTestScheduler().Run(input)

	// BIG takes every room in the morning so SMALL is carried.
	morningSmall := assignmentsFor(result, models.SessionMorning, "SMALL")
	assert.Empty(t, morningSmall)
	eveningSmall := assignmentsFor(result, models.SessionEvening, "SMALL")
	require.NotEmpty(t, eveningSmall)
	for _, a := range eveningSmall {
		assert.True(t, a.CarriedOver)
	}
	assert.NotEmpty(t, assignmentsFor(result, models.SessionEvening, "EVE"))
	assert.Empty(t, result.Overflow)
	assert.Equal(t, 1, result.Stats.CoursesCarried)
}

func TestSessionSchedulerOverflowAfterEvening(t *testing.T) {
	input := models.SeatingInput{
		Rooms:     exampleRooms(),
		Courses:   map[string][]string{"HUGE": makeRoster("H", 61)},
		Timetable: []models.TimetableEntry{{Date: "2024-05-03", Morning: []string{"HUGE"}}},
		Policy:    models.CapacityPolicy{Density: models.DensitySparse},
	}

	result := newTestScheduler().Run(input)

	assert.Empty(t, result.Assignments)
	require.Len(t, result.Overflow, 1)
	assert.Equal(t, models.OverflowRecord{
		Date:          "2024-05-03",
		Session:       models.SessionEvening,
		CourseCode:    "HUGE",
		UnseatedCount: 61,
	}, result.Overflow[0])
	assert.Equal(t, 1, result.Stats.CoursesUnseated)
	assert.Equal(t, 61, result.Stats.StudentsUnseated)
}

func TestSessionSchedulerSkipsEmptyAndUnknownCourses(t *testing.T) {
	input := models.SeatingInput{
		Rooms:     exampleRooms(),
		Courses:   map[string][]string{"EMPTY": {}, "OK": makeRoster("O", 5)},
		Timetable: []models.TimetableEntry{{Date: "2024-05-04", Morning: []string{"EMPTY", "GHOST", "OK", "OK"}}},
		Policy:    models.CapacityPolicy{Density: models.DensityDense},
	}

	result := newTestScheduler().Run(input)

	require.Len(t, result.Assignments, 1)
	assert.Equal(t, "OK", result.Assignments[0].CourseCode)
	assert.Empty(t, result.Overflow)
	assert.Equal(t, 2, result.Stats.CoursesSkipped)
	assert.Len(t, result.Warnings, 2)
	assert.Contains(t, result.Warnings[0], "GHOST")
	assert.Contains(t, result.Warnings[1], "more than once")
}

func TestSessionSchedulerInvariants(t *testing.T) {
	rooms := []models.Room{
		{ID: "101", Block: "B1", RawCapacity: 40, OrderingKey: 101},
		{ID: "102", Block: "B1", RawCapacity: 35, OrderingKey: 102},
		{ID: "LT-1", Block: "B2", RawCapacity: 60, OrderingKey: 1},
		{ID: "LT-2", Block: "B2", RawCapacity: 25, OrderingKey: 2},
		{ID: "H", Block: "B3", RawCapacity: 90, OrderingKey: 0},
	}
	courses := map[string][]string{
		"C1": makeRoster("A", 70),
		"C2": makeRoster("B", 45),
		"C3": makeRoster("C", 12),
		"C4": makeRoster("D", 80),
		"C5": makeRoster("E", 150),
	}
	policy := models.CapacityPolicy{BufferSeats: 2, Density: models.DensityDense}
	input := models.SeatingInput{
		Rooms:   rooms,
		Courses: courses,
		Timetable: []models.TimetableEntry{
			{Date: "2024-05-06", Morning: []string{"C1", "C2", "C3", "C4"}, Evening: []string{"C5"}},
			{Date: "2024-05-07", Morning: []string{"C5"}},
		},
		Policy: policy,
	}

	result := newTestScheduler().Run(input)

	usable := make(map[string]int, len(rooms))
	for _, room := range rooms {
		usable[room.ID] = room.UsableCapacity(policy)
	}
	roomUse := map[string]int{}
	seated := map[string]int{}
	for _, a := range result.Assignments {
		assert.LessOrEqual(t, len(a.Students), usable[a.RoomID], "room %s over capacity", a.RoomID)
		roomUse[a.Date+"|"+string(a.Session)+"|"+a.RoomID]++
		seated[a.Date+"|"+a.CourseCode] += len(a.Students)
	}
	for key, n := range roomUse {
		assert.Equal(t, 1, n, "room reused in %s", key)
	}
	for key, n := range seated {
		code := key[len("2024-05-06|"):]
		assert.Equal(t, len(courses[code]), n, "course %s partially seated", key)
	}
	for _, o := range result.Overflow {
		_, seatedToo := seated[o.Date+"|"+o.CourseCode]
		assert.False(t, seatedToo, "overflowed course %s also has assignments", o.CourseCode)
		assert.Equal(t, len(courses[o.CourseCode]), o.UnseatedCount)
	}
}

func TestSessionSchedulerIsDeterministic(t *testing.T) {
	input := models.SeatingInput{
		Rooms: exampleRooms(),
		Courses: map[string][]string{
			"X": makeRoster("X", 20),
			"Y": makeRoster("Y", 20),
			"Z": makeRoster("Z", 20),
		},
		Timetable: []models.TimetableEntry{{Date: "2024-05-02", Morning: []string{"X", "Y", "Z"}}},
		Policy:    models.CapacityPolicy{Density: models.DensityDense},
	}

	first := newTestScheduler().Run(input)
	second := newTestScheduler().Run(input)

	assert.Equal(t, first, second)
	// equal sizes keep timetable order
	require.GreaterOrEqual(t, len(first.Assignments), 3)
	assert.Equal(t, "X", first.Assignments[0].CourseCode)
}

func TestSessionSchedulerEveningSeatsNativeCoursesBeforeCarried(t *testing.T) {
	input := models.SeatingInput{
		Rooms: []models.Room{
			{ID: "101", Block: "B1", RawCapacity: 100, OrderingKey: 101},
			{ID: "102", Block: "B1", RawCapacity: 5, OrderingKey: 102},
		},
		Courses: map[string][]string{
			"BIG": makeRoster("B", 100),
			"CAR": makeRoster("C", 10),
			"NAT": makeRoster("N", 10),
		},
		Timetable: []models.TimetableEntry{{
			Date:    "2024-05-02",
			Morning: []string{"BIG", "CAR"},
			Evening: []string{"NAT"},
		}},
		Policy: models.CapacityPolicy{Density: models.DensityDense},
	}

	result := newTestScheduler().Run(input)

	native := assignmentsFor(result, models.SessionEvening, "NAT")
	require.Len(t, native, 1)
	assert.Equal(t, "101", native[0].RoomID)
	assert.False(t, native[0].CarriedOver)
	assert.Empty(t, assignmentsFor(result, models.SessionEvening, "CAR"))
	assert.Equal(t, []models.OverflowRecord{{
		Date:          "2024-05-02",
		Session:       models.SessionEvening,
		CourseCode:    "CAR",
		UnseatedCount: 10,
	}}, result.Overflow)
	assert.Equal(t, 1, result.Stats.RoomsUsed, "room 101 is reused across sessions")
}

func TestSessionSchedulerCarriedCourseListedForEveningRunsOnce(t *testing.T) {
	input := models.SeatingInput{
		Rooms: []models.Room{
			{ID: "101", Block: "B1", RawCapacity: 100, OrderingKey: 101},
			{ID: "102", Block: "B1", RawCapacity: 10, OrderingKey: 102},
		},
		Courses: map[string][]string{
			"BIG": makeRoster("B", 100),
			"DUP": makeRoster("D", 15),
		},
		Timetable: []models.TimetableEntry{{
			Date:    "2024-05-02",
			Morning: []string{"BIG", "DUP"},
			Evening: []string{"DUP"},
		}},
		Policy: models.CapacityPolicy{Density: models.DensityDense},
	}

	result := newTestScheduler().Run(input)

	evening := assignmentsFor(result, models.SessionEvening, "DUP")
	require.Len(t, evening, 1)
	assert.True(t, evening[0].CarriedOver)
	assert.Empty(t, result.Overflow)
	assert.Equal(t, 1, result.Stats.CoursesCarried)
	assert.Equal(t, 2, result.Stats.CoursesSeated)
	assert.Len(t, evening[0].Students, 15)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "DUP listed more than once")
}
