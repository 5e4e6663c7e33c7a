package server

import (
	"net/http"
	"testing"

	"github.com/MarcoPoloResearchLab/mealog/internal/meals"
)

func TestCreateMealStampsAndReturnsRecord(t *testing.T) {
	repository := newTestRepository(t)
	handler := newTestHandler(t, repository, nil)

	recorder := performJSONRequest(t, handler, http.MethodPost, "/meals", map[string]any{
		"date":     "2026-01-05",
		"name":     "Oatmeal",
		"calories": 350,
		"protein":  "12",
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var created meals.Meal
	decodeResponse(t, recorder, &created)
	if created.ID != "meal-01" {
		t.Fatalf("expected generated id meal-01, got %q", created.ID)
	}
	if created.Type != meals.DefaultMealType {
		t.Fatalf("expected default type, got %q", created.Type)
	}
	if created.Calories != "350" || created.Timestamp == 0 {
		t.Fatalf("unexpected stored meal: %+v", created)
	}
	if len(repository.MealsByDate("2026-01-05")) != 1 {
		t.Fatalf("expected meal to be persisted")
	}
}

func TestCreateMealRejectsInvalidInput(t *testing.T) {
	handler := newTestHandler(t, newTestRepository(t), nil)

	testCases := []struct {
		name string
		body map[string]any
	}{
		{name: "blank", body: map[string]any{"date": "2026-01-05"}},
		{name: "bad date", body: map[string]any{"date": "05/01/2026", "name": "Toast"}},
		{name: "unknown type", body: map[string]any{"date": "2026-01-05", "name": "Toast", "type": "brunch"}},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			recorder := performJSONRequest(t, handler, http.MethodPost, "/meals", testCase.body)
			if recorder.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", recorder.Code, recorder.Body.String())
			}
		})
	}
}

func TestCreateMealConflictsOnDuplicateID(t *testing.T) {
	handler := newTestHandler(t, newTestRepository(t), nil)
	body := map[string]any{"id": "fixed", "date": "2026-01-05", "name": "Toast"}

	if recorder := performJSONRequest(t, handler, http.MethodPost, "/meals", body); recorder.Code != http.StatusCreated {
		t.Fatalf("expected first create to succeed, got %d", recorder.Code)
	}
	recorder := performJSONRequest(t, handler, http.MethodPost, "/meals", body)
	if recorder.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", recorder.Code, recorder.Body.String())
	}
}

func TestUpdateAndDeleteMeal(t *testing.T) {
	repository := newTestRepository(t)
	handler := newTestHandler(t, repository, nil)
	performJSONRequest(t, handler, http.MethodPost, "/meals", map[string]any{"date": "2026-01-05", "name": "Toast"})

	updated := performJSONRequest(t, handler, http.MethodPatch, "/meals/meal-01", map[string]any{"calories": "120", "type": "snack"})
	if updated.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", updated.Code, updated.Body.String())
	}
	var meal meals.Meal
	decodeResponse(t, updated, &meal)
	if meal.Name != "Toast" || meal.Calories != "120" || meal.Type != meals.MealTypeSnack {
		t.Fatalf("unexpected updated meal: %+v", meal)
	}

	missing := performJSONRequest(t, handler, http.MethodPatch, "/meals/absent", map[string]any{"name": "x"})
	if missing.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing meal, got %d", missing.Code)
	}

	invalid := performJSONRequest(t, handler, http.MethodPatch, "/meals/meal-01", map[string]any{"type": "brunch"})
	if invalid.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown type, got %d", invalid.Code)
	}

	deleted := performJSONRequest(t, handler, http.MethodDelete, "/meals/meal-01", nil)
	if deleted.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", deleted.Code)
	}
	if len(repository.Meals()) != 0 {
		t.Fatalf("expected meal to be removed")
	}
	again := performJSONRequest(t, handler, http.MethodDelete, "/meals/meal-01", nil)
	if again.Code != http.StatusNoContent {
		t.Fatalf("expected deleting a missing meal to be a no-op, got %d", again.Code)
	}
}

func TestDayAndMonthSummaries(t *testing.T) {
	handler := newTestHandler(t, newTestRepository(t), nil)
	for _, body := range []map[string]any{
		{"date": "2026-01-05", "name": "Oatmeal", "calories": "350", "protein": "12"},
		{"date": "2026-01-05", "name": "Salad", "calories": "200"},
		{"date": "2026-01-20", "name": "Soup", "calories": "150"},
		{"date": "2026-02-01", "name": "Cake", "calories": "500"},
	} {
		if recorder := performJSONRequest(t, handler, http.MethodPost, "/meals", body); recorder.Code != http.StatusCreated {
			t.Fatalf("seed failed: %d %s", recorder.Code, recorder.Body.String())
		}
	}

	dayRecorder := performJSONRequest(t, handler, http.MethodGet, "/days/2026-01-05", nil)
	if dayRecorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", dayRecorder.Code)
	}
	var day dayResponse
	decodeResponse(t, dayRecorder, &day)
	if len(day.Meals) != 2 || day.Totals.Count != 2 || day.Totals.Calories.String() != "550" {
		t.Fatalf("unexpected day summary: %+v", day)
	}
	if day.Meals[0].Name != "Oatmeal" {
		t.Fatalf("expected creation order, got %q first", day.Meals[0].Name)
	}

	monthRecorder := performJSONRequest(t, handler, http.MethodGet, "/months/2026-01", nil)
	if monthRecorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", monthRecorder.Code)
	}
	var month monthResponse
	decodeResponse(t, monthRecorder, &month)
	if len(month.Days) != 31 {
		t.Fatalf("expected every day of January, got %d", len(month.Days))
	}
	if month.Totals.Calories.String() != "700" || month.Label != "January 2026" {
		t.Fatalf("unexpected month summary: %+v", month)
	}

	if recorder := performJSONRequest(t, handler, http.MethodGet, "/months/2026-13", nil); recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid month, got %d", recorder.Code)
	}
	if recorder := performJSONRequest(t, handler, http.MethodGet, "/days/yesterday", nil); recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid date, got %d", recorder.Code)
	}
}

func TestSuggestionsRankHistory(t *testing.T) {
	handler := newTestHandler(t, newTestRepository(t), nil)
	performJSONRequest(t, handler, http.MethodPost, "/meals", map[string]any{"date": "2026-01-04", "name": "Protein Shake", "calories": "180", "protein": "25"})
	performJSONRequest(t, handler, http.MethodPost, "/meals", map[string]any{"date": "2026-01-05", "name": "Shake"})

	recorder := performJSONRequest(t, handler, http.MethodGet, "/suggestions?q=shake&date=2026-01-05&id=meal-02", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var response suggestionsResponse
	decodeResponse(t, recorder, &response)
	if len(response.Suggestions) != 1 || response.Suggestions[0].Name != "Protein Shake" {
		t.Fatalf("unexpected suggestions: %+v", response.Suggestions)
	}

	empty := performJSONRequest(t, handler, http.MethodGet, "/suggestions?q=", nil)
	var emptyResponse suggestionsResponse
	decodeResponse(t, empty, &emptyResponse)
	if emptyResponse.Suggestions == nil || len(emptyResponse.Suggestions) != 0 {
		t.Fatalf("expected an empty list for a blank query, got %+v", emptyResponse.Suggestions)
	}
}

func TestNewHTTPHandlerRequiresMealService(t *testing.T) {
	if _, err := NewHTTPHandler(Dependencies{}); err == nil {
		t.Fatal("expected an error without a meal service")
	}
}
