package analysis

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/youngukshin9402-code/cloud-sync-manager/internal/errors"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/models"
)

// Completer is the chat completion call the analyzer needs.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Analyzer runs the analyses over a Completer.
type Analyzer struct {
	llm Completer
	now func() time.Time
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(llm Completer) *Analyzer {
	return &Analyzer{llm: llm, now: time.Now}
}

func zero() *float64 {
	t := 0.0
	return &t
}

const inBodySystemPrompt = `You read InBody body composition sheets and extract values.
Return only a JSON object with these keys:
date (YYYY-MM-DD), weight (kg), skeletal_muscle (kg), body_fat_percent (%),
bmr (kcal), body_fat (kg), visceral_fat (level).
Use null for any value you cannot read.`

// InBody extracts body composition values from an InBody sheet image.
// image is a data URI or bare base64 JPEG.
func (a *Analyzer) InBody(ctx context.Context, image string) (models.AnalysisResult, error) {
	if image == "" {
		return models.AnalysisResult{}, errors.New(errors.ErrInvalid, "image is required")
	}
	if !strings.HasPrefix(image, "data:") {
		image = "data:image/jpeg;base64," + image
	}

	content, err := a.llm.Complete(ctx, CompletionRequest{
		Messages: []Message{
			{Role: "system", Content: inBodySystemPrompt},
			{Role: "user", Content: []ContentPart{
				TextPart("이 인바디 결과지에서 체성분 데이터를 JSON으로만 추출해주세요."),
				ImagePart(image),
			}},
		},
		MaxTokens:   500,
		Temperature: zero(),
	})
	if err != nil {
		return models.AnalysisResult{}, err
	}

	raw, err := ExtractJSON(content)
	if err != nil {
		return models.AnalysisResult{}, err
	}
	doc := gjson.Parse(raw)

	res := &models.InBodyResult{
		Date:           doc.Get("date").String(),
		Weight:         optionalNumber(doc, "weight"),
		SkeletalMuscle: optionalNumber(doc, "skeletal_muscle"),
		BodyFatPercent: optionalNumber(doc, "body_fat_percent"),
		BMR:            optionalNumber(doc, "bmr"),
		BodyFat:        optionalNumber(doc, "body_fat"),
		VisceralFat:    optionalNumber(doc, "visceral_fat"),
	}
	if res.Date == "" {
		res.Date = a.now().Format("2006-01-02")
	}

	return models.AnalysisResult{
		SchemaVersion: models.AnalysisSchemaVersion,
		Kind:          models.AnalysisInBody,
		InBody:        res,
	}, nil
}

const checkupPrompt = `You are a strict health checkup analyst. Do not grade generously.
Return only a JSON object, no markdown:
{
  "is_health_checkup": bool,
  "health_score": 0-100 (borderline values lose points; 70s is average),
  "health_age": number or null,
  "summary": one line,
  "score_reason": 2-3 lines,
  "key_issues": up to 3 strings,
  "action_items": 3 strings,
  "warnings": strings, include that this is not a medical diagnosis,
  "items": [{"name","value","unit","status":"normal|warning|danger","description"}],
  "health_tags": strings,
  "recommendations": 2-3 strings
}
If the images are not a health checkup sheet set is_health_checkup to false and items to [].
Write every text value in Korean.`

// Checkup grades a health checkup from one or more sheet images (data URIs).
// Images that are not a checkup sheet yield ErrAINotHealthCheckup.
func (a *Analyzer) Checkup(ctx context.Context, images []string) (models.AnalysisResult, error) {
	if len(images) == 0 {
		return models.AnalysisResult{}, errors.New(errors.ErrInvalid, "at least one image is required")
	}

	parts := []ContentPart{TextPart(checkupPrompt)}
	for _, img := range images {
		parts = append(parts, ImagePart(img))
	}

	content, err := a.llm.Complete(ctx, CompletionRequest{
		Messages: []Message{{Role: "user", Content: parts}},
	})
	if err != nil {
		return models.AnalysisResult{}, err
	}

	res, err := ParseCheckup(content)
	if err != nil {
		return models.AnalysisResult{}, err
	}
	return models.AnalysisResult{
		SchemaVersion: models.AnalysisSchemaVersion,
		Kind:          models.AnalysisHealthCheckup,
		HealthCheckup: res,
	}, nil
}

// ParseCheckup decodes a checkup reply. A reply that flags the images as
// not a checkup, lacks an items array or is not JSON at all is reported
// as ErrAINotHealthCheckup.
func ParseCheckup(content string) (*models.HealthCheckupResult, error) {
	raw, err := ExtractJSON(content)
	if err != nil {
		return nil, errors.Wrap(errors.ErrAINotHealthCheckup, "uploaded image is not a health checkup sheet", err)
	}
	doc := gjson.Parse(raw)

	if flag := doc.Get("is_health_checkup"); flag.Exists() && !flag.Bool() {
		return nil, errors.New(errors.ErrAINotHealthCheckup, "uploaded image is not a health checkup sheet")
	}
	if !doc.Get("items").IsArray() {
		return nil, errors.New(errors.ErrAINotHealthCheckup, "checkup items missing from response")
	}

	res := &models.HealthCheckupResult{
		HealthScore:     clampScore(int(doc.Get("health_score").Int()), 0),
		Summary:         doc.Get("summary").String(),
		ScoreReason:     doc.Get("score_reason").String(),
		KeyIssues:       stringList(doc, "key_issues"),
		ActionItems:     stringList(doc, "action_items"),
		Warnings:        stringList(doc, "warnings"),
		HealthTags:      stringList(doc, "health_tags"),
		Recommendations: stringList(doc, "recommendations"),
		Items:           []models.CheckupItem{},
	}
	if age := doc.Get("health_age"); age.Type == gjson.Number {
		v := int(age.Int())
		res.HealthAge = &v
	}
	doc.Get("items").ForEach(func(_, it gjson.Result) bool {
		status := models.CheckupItemStatus(it.Get("status").String())
		switch status {
		case models.CheckupNormal, models.CheckupWarning, models.CheckupDanger:
		default:
			status = models.CheckupWarning
		}
		res.Items = append(res.Items, models.CheckupItem{
			Name:        it.Get("name").String(),
			Value:       it.Get("value").String(),
			Unit:        it.Get("unit").String(),
			Status:      status,
			Description: it.Get("description").String(),
		})
		return true
	})
	return res, nil
}

// DietScore is the deterministic day score: closeness of each macro to its
// goal, weighted calories 40%, protein 30%, carbs 15%, fat 15%, clamped
// to [30, 100].
func DietScore(totals models.NutritionTotals, goals models.NutritionGoals) int {
	part := func(got, goal, slope float64) float64 {
		if goal <= 0 {
			return 0
		}
		return math.Max(0, 100-math.Abs(1-got/goal)*slope)
	}
	score := part(totals.TotalCalories, goals.CalorieGoal, 50)*0.4 +
		part(totals.TotalProtein, goals.ProteinGoalG, 40)*0.3 +
		part(totals.TotalCarbs, goals.CarbGoalG, 30)*0.15 +
		part(totals.TotalFat, goals.FatGoalG, 30)*0.15
	return clampScore(int(math.Round(score)), 30)
}

func clampScore(v, floor int) int {
	if v < floor {
		return floor
	}
	if v > 100 {
		return 100
	}
	return v
}

const dietSystemPrompt = `You are a warm, encouraging nutritionist. Praise what went well
first, then suggest improvements gently. Keep every evaluation to 3-4 short sentences.
Always answer in Korean and only with a JSON object.`

// DietFeedback asks for feedback on one day of meals. The score is computed
// locally with DietScore and overrides whatever the model returns.
func (a *Analyzer) DietFeedback(ctx context.Context, data models.NutritionData, profile *models.UserProfile) (models.AnalysisResult, error) {
	score := DietScore(data.Totals, data.Goals)

	content, err := a.llm.Complete(ctx, CompletionRequest{
		Messages: []Message{
			{Role: "system", Content: dietSystemPrompt},
			{Role: "user", Content: dietPrompt(data, profile, score)},
		},
		Temperature: zero(),
	})
	if err != nil {
		return models.AnalysisResult{}, err
	}

	raw, err := ExtractJSON(content)
	if err != nil {
		return models.AnalysisResult{}, err
	}
	doc := gjson.Parse(raw)

	fb := &models.DietFeedback{
		Score:             score,
		Summary:           doc.Get("summary").String(),
		HarshEvaluation:   doc.Get("harshEvaluation").String(),
		BalanceEvaluation: doc.Get("balanceEvaluation").String(),
		Improvements:      stringList(doc, "improvements"),
		RecommendedFoods:  stringList(doc, "recommendedFoods"),
		CautionFoods:      stringList(doc, "cautionFoods"),
	}
	return models.AnalysisResult{
		SchemaVersion: models.AnalysisSchemaVersion,
		Kind:          models.AnalysisDietFeedback,
		DietFeedback:  fb,
	}, nil
}

func dietPrompt(data models.NutritionData, profile *models.UserProfile, score int) string {
	var b strings.Builder
	if profile != nil {
		b.WriteString("User:\n")
		fmt.Fprintf(&b, "- age: %s\n", optInt(profile.Age))
		fmt.Fprintf(&b, "- height: %s cm\n", optFloat(profile.HeightCm))
		fmt.Fprintf(&b, "- weight: %s kg (goal %s kg)\n", optFloat(profile.CurrentWeight), optFloat(profile.GoalWeight))
		conditions := "none"
		if len(profile.Conditions) > 0 {
			conditions = strings.Join(profile.Conditions, ", ")
		}
		fmt.Fprintf(&b, "- conditions: %s\n\n", conditions)
	}

	b.WriteString("Meals today:\n")
	for _, m := range data.Meals {
		fmt.Fprintf(&b, "%s: %s (%gkcal)\n", m.MealType, strings.Join(m.Foods, ", "), m.Calories)
	}

	t, g := data.Totals, data.Goals
	fmt.Fprintf(&b, "\nIntake vs goal:\n- calories %gkcal / %gkcal\n- carbs %gg / %gg\n- protein %gg / %gg\n- fat %gg / %gg\n",
		t.TotalCalories, g.CalorieGoal, t.TotalCarbs, g.CarbGoalG, t.TotalProtein, g.ProteinGoalG, t.TotalFat, g.FatGoalG)

	fmt.Fprintf(&b, `
The score is fixed at %d. Reply with:
{"score": %d, "summary": "", "harshEvaluation": "", "balanceEvaluation": "",
 "improvements": ["", "", ""], "recommendedFoods": ["", "", ""], "cautionFoods": ["", ""]}`, score, score)
	return b.String()
}

func optInt(v *int) string {
	if v == nil {
		return "unknown"
	}
	return fmt.Sprint(*v)
}

func optFloat(v *float64) string {
	if v == nil {
		return "unknown"
	}
	return fmt.Sprintf("%g", *v)
}
