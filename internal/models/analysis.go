package models

// AnalysisKind discriminates AnalysisResult payloads.
type AnalysisKind string

const (
	AnalysisInBody        AnalysisKind = "inbody"
	AnalysisHealthCheckup AnalysisKind = "health_checkup"
	AnalysisDietFeedback  AnalysisKind = "diet_feedback"
)

// AnalysisSchemaVersion is bumped whenever a payload shape changes.
const AnalysisSchemaVersion = 1

// AnalysisResult is a tagged AI result. Exactly one payload field is set,
// matching Kind.
type AnalysisResult struct {
	SchemaVersion int                  `json:"schema_version"`
	Kind          AnalysisKind         `json:"kind"`
	InBody        *InBodyResult        `json:"inbody,omitempty"`
	HealthCheckup *HealthCheckupResult `json:"health_checkup,omitempty"`
	DietFeedback  *DietFeedback        `json:"diet_feedback,omitempty"`
}

// InBodyResult holds body composition values read from an InBody sheet.
// Values that could not be read are nil.
type InBodyResult struct {
	Date           string   `json:"date"`
	Weight         *float64 `json:"weight"`
	SkeletalMuscle *float64 `json:"skeletal_muscle"`
	BodyFatPercent *float64 `json:"body_fat_percent"`
	BMR            *float64 `json:"bmr"`
	BodyFat        *float64 `json:"body_fat"`
	VisceralFat    *float64 `json:"visceral_fat"`
}

// CheckupItemStatus grades one checkup measurement.
type CheckupItemStatus string

const (
	CheckupNormal  CheckupItemStatus = "normal"
	CheckupWarning CheckupItemStatus = "warning"
	CheckupDanger  CheckupItemStatus = "danger"
)

type CheckupItem struct {
	Name        string            `json:"name"`
	Value       string            `json:"value"`
	Unit        string            `json:"unit"`
	Status      CheckupItemStatus `json:"status"`
	Description string            `json:"description"`
}

// HealthCheckupResult is the analysis of a health checkup sheet.
type HealthCheckupResult struct {
	HealthScore     int           `json:"health_score"`
	HealthAge       *int          `json:"health_age"`
	Summary         string        `json:"summary"`
	ScoreReason     string        `json:"score_reason"`
	KeyIssues       []string      `json:"key_issues"`
	ActionItems     []string      `json:"action_items"`
	Warnings        []string      `json:"warnings"`
	Items           []CheckupItem `json:"items"`
	HealthTags      []string      `json:"health_tags"`
	Recommendations []string      `json:"recommendations"`
}

// DietFeedback is the nutritionist feedback for one day of meals.
type DietFeedback struct {
	Score             int      `json:"score"`
	Summary           string   `json:"summary"`
	HarshEvaluation   string   `json:"harshEvaluation"`
	BalanceEvaluation string   `json:"balanceEvaluation"`
	Improvements      []string `json:"improvements"`
	RecommendedFoods  []string `json:"recommendedFoods"`
	CautionFoods      []string `json:"cautionFoods"`
}

// MealSummary is one meal in a diet feedback request.
type MealSummary struct {
	MealType string   `json:"mealType"`
	Foods    []string `json:"foods"`
	Calories float64  `json:"calories"`
}

// NutritionTotals are the day's consumed macros.
type NutritionTotals struct {
	TotalCalories float64 `json:"totalCalories"`
	TotalCarbs    float64 `json:"totalCarbs"`
	TotalProtein  float64 `json:"totalProtein"`
	TotalFat      float64 `json:"totalFat"`
}

// NutritionGoals are the day's macro targets.
type NutritionGoals struct {
	CalorieGoal  float64 `json:"calorieGoal"`
	CarbGoalG    float64 `json:"carbGoalG"`
	ProteinGoalG float64 `json:"proteinGoalG"`
	FatGoalG     float64 `json:"fatGoalG"`
}

type NutritionData struct {
	Meals  []MealSummary   `json:"meals"`
	Totals NutritionTotals `json:"totals"`
	Goals  NutritionGoals  `json:"goals"`
}

// UserProfile personalizes diet feedback. Unknown values are nil.
type UserProfile struct {
	Age           *int     `json:"age"`
	HeightCm      *float64 `json:"heightCm"`
	CurrentWeight *float64 `json:"currentWeight"`
	GoalWeight    *float64 `json:"goalWeight"`
	Conditions    []string `json:"conditions"`
}
