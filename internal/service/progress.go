package service

// Pipeline stages a job reports while it runs. The dashboard polls and
// renders these verbatim, so they are part of the API surface.
const (
	StageStarting           = "starting"
	StageScrapingComments   = "scraping_comments"
	StageExtractingProfiles = "extracting_profiles"
	StageScrapingProfiles   = "scraping_profiles"
	StageSavingData         = "saving_data"
	StageCompleted          = "completed"
	StageError              = "error"
)

var stagePercent = map[string]int{
	StageStarting:           5,
	StageScrapingComments:   20,
	StageExtractingProfiles: 50,
	StageScrapingProfiles:   60,
	StageSavingData:         85,
	StageCompleted:          100,
	StageError:              100,
}

// StagePercent returns the indicative completion percentage of a stage.
// Unknown stages map to 0.
func StagePercent(stage string) int {
	return stagePercent[stage]
}

// ProgressFunc receives stage transitions while a job executes.
type ProgressFunc func(stage string, percent int, message string)
