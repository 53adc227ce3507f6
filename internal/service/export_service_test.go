package service

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-seating-api/internal/models"
	"github.com/noah-isme/exam-seating-api/pkg/storage"
)

func sampleBundle() SeatingBundle {
	return SeatingBundle{
		Assignments: []models.Assignment{
			{Date: "2024-05-02", Session: models.SessionMorning, CourseCode: "CS101", RoomID: "101", Block: "B1", Students: []string{"R1", "R2"}},
			{Date: "2024-05-02", Session: models.SessionEvening, CourseCode: "MA101", RoomID: "LT-2", Block: "B2", Students: []string{"M1"}, CarriedOver: true},
			{Date: "2024-05-03", Session: models.SessionMorning, CourseCode: "PH101", RoomID: "101", Block: "B1", Students: []string{"P1"}},
		},
		Overflow: []models.OverflowRecord{
			{Date: "2024-05-02", Session: models.SessionEvening, CourseCode: "EE201", UnseatedCount: 61},
		},
		RollNames: models.RollNames{"R1": "Asha"},
	}
}

func readArchive(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	files := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		files[f.Name] = content
	}
	return files
}

func archiveNames(files map[string][]byte) []string {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func TestSeatingArchiverBuild(t *testing.T) {
	data, count, err := NewSeatingArchiver().Build(sampleBundle(), models.ExportJobParams{Format: models.ExportFormatXLSX, Summary: true})
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	files := readArchive(t, data)
	assert.Equal(t, []string{
		"02_05_2024/evening/02_05_2024_MA101_LT-2_evening.xlsx",
		"02_05_2024/morning/02_05_2024_CS101_101_morning.xlsx",
		"03_05_2024/morning/03_05_2024_PH101_101_morning.xlsx",
		OverallSeatingFile,
		SeatsLeftFile,
	}, archiveNames(files))

	sheet, err := excelize.OpenReader(bytes.NewReader(files["02_05_2024/morning/02_05_2024_CS101_101_morning.xlsx"]))
	require.NoError(t, err)
	defer sheet.Close()
	rows, err := sheet.GetRows("Morning")
	require.NoError(t, err)
	assert.Equal(t, "Course: CS101 | Room: 101 | Date: 02-05-2024 | Session: Morning", rows[0][0])
	assert.Equal(t, []string{"Roll", "Student Name", "Signature"}, rows[1])
	assert.Equal(t, "Asha", rows[2][1])
	assert.Equal(t, "Unknown", rows[3][1])

	overall, err := excelize.OpenReader(bytes.NewReader(files[OverallSeatingFile]))
	require.NoError(t, err)
	defer overall.Close()
	overallRows, err := overall.GetRows("Overall")
	require.NoError(t, err)
	require.Len(t, overallRows, 4)
	assert.Equal(t, []string{"02_05_2024", "Morning", "CS101", "101", "R1;R2"}, overallRows[1])

	left, err := excelize.OpenReader(bytes.NewReader(files[SeatsLeftFile]))
	require.NoError(t, err)
	defer left.Close()
	leftRows, err := left.GetRows("Left")
	require.NoError(t, err)
	assert.Equal(t, []string{"02_05_2024", "EE201", "61"}, leftRows[1])
}

func TestSeatingArchiverOptionalFormats(t *testing.T) {
	archiver := NewSeatingArchiver()

	data, _, err := archiver.Build(sampleBundle(), models.ExportJobParams{Format: models.ExportFormatPDF, Dates: []string{"2024-05-03"}})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"03_05_2024/morning/03_05_2024_PH101_101_morning.pdf",
		"03_05_2024/morning/03_05_2024_PH101_101_morning.xlsx",
	}, archiveNames(readArchive(t, data)))

	data, _, err = archiver.Build(sampleBundle(), models.ExportJobParams{Format: models.ExportFormatCSV, Summary: true})
	require.NoError(t, err)
	files := readArchive(t, data)
	require.Contains(t, files, OverallSeatingCSV)
	assert.Contains(t, string(files[OverallSeatingCSV]), "Date,Session,Course,Room,Rolls")
	assert.Contains(t, string(files[OverallSeatingCSV]), "02_05_2024,Morning,CS101,101,R1;R2")
}

func newExportServiceForTest(t *testing.T) (*ExportService, *planStoreStub, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	plans := &planStoreStub{plans: map[string]*models.SeatingPlan{
		"plan-1": {ID: "plan-1", Status: models.SeatingPlanStatusPublished, RollNames: models.RollNames{"R1": "Asha"}},
	}}
	records := newRecordStoreStub()
	bundle := sampleBundle()
	records.assignments["plan-1"] = bundle.Assignments
	records.overflow["plan-1"] = bundle.Overflow

	signer := storage.NewSignedURLSigner("secret", time.Hour)
	svc := NewExportService(plans, records, store, signer, ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}, zap.NewNop(), nil)
	return svc, plans, store
}

func TestExportServiceGenerate(t *testing.T) {
	svc, _, store := newExportServiceForTest(t)
	job := &models.ExportJob{ID: "job-1", PlanID: "plan-1", Params: models.ExportJobParams{Format: models.ExportFormatXLSX, Summary: true}}

	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, "plans/plan-1/job-1/exam_seating.zip", result.RelativePath)
	assert.Equal(t, 5, result.Files)
	assert.Equal(t, "/api/v1/exports/download/"+result.Token, result.URL)

	path, err := store.Path(result.RelativePath)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, readArchive(t, data), 5)

	jobID, relPath, _, err := svc.ParseToken(result.Token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, result.RelativePath, relPath)
}

func TestExportServiceGenerateMissingPlan(t *testing.T) {
	svc, _, _ := newExportServiceForTest(t)
	_, err := svc.Generate(context.Background(), &models.ExportJob{ID: "job-1", PlanID: "gone"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no longer exists")
}
