package service

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/noah-isme/exam-seating-api/internal/models"
	"github.com/noah-isme/exam-seating-api/pkg/workbook"
)

// LoadedTables is the normalised form of the raw input tables.
type LoadedTables struct {
	Input       models.SeatingInput
	RollNames   models.RollNames
	Warnings    []string
	Fingerprint string
}

// SeatingLoader turns raw workbook tables into a run input.
type SeatingLoader struct {
	numericBlock string
}

// NewSeatingLoader builds a loader. numericBlock names the block whose room
// identifiers are plain numbers.
func NewSeatingLoader(numericBlock string) *SeatingLoader {
	if strings.TrimSpace(numericBlock) == "" {
		numericBlock = "B1"
	}
	return &SeatingLoader{numericBlock: strings.TrimSpace(numericBlock)}
}

// Load normalises codes and rolls, builds rooms and timetable entries, and
// reports every rejected row as a warning.
func (l *SeatingLoader) Load(tables *workbook.Tables, policy models.CapacityPolicy) (*LoadedTables, error) {
	if tables == nil {
		return nil, fmt.Errorf("no input tables")
	}
	out := &LoadedTables{
		Input: models.SeatingInput{
			Courses: map[string][]string{},
			Policy:  policy,
		},
		RollNames: models.RollNames{},
		Warnings:  []string{},
	}

	out.Input.Rooms = l.loadRooms(tables.Rooms, out)
	out.Input.Courses = loadRosters(tables.CourseRolls, out)
	out.Input.Timetable = loadTimetable(tables.Timetable, out)
	for _, row := range tables.RollNames {
		roll := normaliseCode(row.Roll)
		if roll == "" {
			continue
		}
		out.RollNames[roll] = strings.TrimSpace(row.Name)
	}

	fingerprint, err := Fingerprint(out.Input)
	if err != nil {
		return nil, err
	}
	out.Fingerprint = fingerprint
	return out, nil
}

func (l *SeatingLoader) loadRooms(rows []workbook.RoomRow, out *LoadedTables) []models.Room {
	rooms := make([]models.Room, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for i, row := range rows {
		capacity, err := parseCapacity(row.Capacity)
		if err != nil {
			out.warn("room row %d (%s): %v", i+2, row.RoomNo, err)
			continue
		}
		room, err := models.NewRoom(row.RoomNo, row.Block, capacity, l.numericBlock)
		if err != nil {
			out.warn("room row %d: %v", i+2, err)
			continue
		}
		if seen[room.ID] {
			out.warn("room row %d: duplicate room %s ignored", i+2, room.ID)
			continue
		}
		seen[room.ID] = true
		rooms = append(rooms, room)
	}
	return rooms
}

func loadRosters(rows []workbook.CourseRollRow, out *LoadedTables) map[string][]string {
	sets := map[string]map[string]struct{}{}
	for i, row := range rows {
		code := normaliseCode(row.CourseCode)
		roll := normaliseCode(row.Roll)
		if code == "" || roll == "" {
			out.warn("course roll row %d: missing roll or course code", i+2)
			continue
		}
		if sets[code] == nil {
			sets[code] = map[string]struct{}{}
		}
		sets[code][roll] = struct{}{}
	}
	rosters := make(map[string][]string, len(sets))
	for code, set := range sets {
		roster := make([]string, 0, len(set))
		for roll := range set {
			roster = append(roster, roll)
		}
		sort.Strings(roster)
		rosters[code] = roster
	}
	return rosters
}

// loadTimetable keeps first-appearance order. Rows sharing a date are merged
// so each (date, session) slot is processed once.
func loadTimetable(rows []workbook.TimetableRow, out *LoadedTables) []models.TimetableEntry {
	entries := make([]models.TimetableEntry, 0, len(rows))
	index := map[string]int{}
	for i, row := range rows {
		day, err := workbook.ParseDate(row.Date)
		if err != nil {
			out.warn("timetable row %d: %v", i+2, err)
			continue
		}
		date := day.Format(models.DateLayout)
		morning := normaliseCodes(workbook.SplitCourses(row.Morning))
		evening := normaliseCodes(workbook.SplitCourses(row.Evening))
		if pos, ok := index[date]; ok {
			out.warn("timetable row %d: date %s repeated, sessions merged", i+2, date)
			entries[pos].Morning = append(entries[pos].Morning, morning...)
			entries[pos].Evening = append(entries[pos].Evening, evening...)
			continue
		}
		index[date] = len(entries)
		entries = append(entries, models.TimetableEntry{Date: date, Morning: morning, Evening: evening})
	}
	return entries
}

func parseCapacity(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("invalid capacity %q", raw)
	}
	return int(f), nil
}

func normaliseCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

func normaliseCodes(codes []string) []string {
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		if c := normaliseCode(code); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func (l *LoadedTables) warn(format string, args ...any) {
	l.Warnings = append(l.Warnings, fmt.Sprintf(format, args...))
}

// Fingerprint identifies a run input; equal inputs produce equal results.
func Fingerprint(input models.SeatingInput) (string, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("fingerprint seating input: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
