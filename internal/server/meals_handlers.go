package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/MarcoPoloResearchLab/mealog/internal/calendar"
	"github.com/MarcoPoloResearchLab/mealog/internal/meals"
	"github.com/MarcoPoloResearchLab/mealog/internal/recommend"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var errBlankMeal = errors.New("meal has no content")

type mealListResponse struct {
	Meals []meals.Meal `json:"meals"`
}

type dayResponse struct {
	Date   string       `json:"date"`
	Meals  []meals.Meal `json:"meals"`
	Totals meals.Totals `json:"totals"`
}

type monthResponse struct {
	Month  string                `json:"month"`
	Label  string                `json:"label"`
	Days   []calendar.DaySummary `json:"days"`
	Totals meals.Totals          `json:"totals"`
}

type suggestionsResponse struct {
	Suggestions []recommend.Candidate `json:"suggestions"`
}

func (h *httpHandler) handleListMeals(c *gin.Context) {
	date := strings.TrimSpace(c.Query("date"))
	if date == "" {
		c.JSON(http.StatusOK, mealListResponse{Meals: nonNilMeals(h.meals.Meals())})
		return
	}
	if err := meals.ValidateDate(date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, mealListResponse{Meals: nonNilMeals(h.meals.MealsByDate(date))})
}

func (h *httpHandler) handleCreateMeal(c *gin.Context) {
	var meal meals.Meal
	if err := c.ShouldBindJSON(&meal); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := meals.ValidateDate(meal.Date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if meal.IsBlank() {
		c.JSON(http.StatusBadRequest, gin.H{"error": errBlankMeal.Error()})
		return
	}
	if meal.ID == "" {
		id, err := h.meals.IDProvider().NewID()
		if err != nil {
			h.logger.Error("meal id generation failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		meal.ID = id
	} else if err := meals.ValidateMealID(meal.ID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.meals.AddMeal(c.Request.Context(), meal); err != nil {
		h.respondWithServiceError(c, "create", meal.ID, err)
		return
	}

	stored, ok := findMeal(h.meals.Meals(), meal.ID)
	if !ok {
		c.JSON(http.StatusCreated, meal)
		return
	}
	c.JSON(http.StatusCreated, stored)
}

func (h *httpHandler) handleUpdateMeal(c *gin.Context) {
	id := c.Param("id")
	var patch meals.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := patch.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, ok := findMeal(h.meals.Meals(), id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": meals.ErrNotFound.Error()})
		return
	}
	if err := h.meals.UpdateMeal(c.Request.Context(), id, patch); err != nil {
		h.respondWithServiceError(c, "update", id, err)
		return
	}
	stored, ok := findMeal(h.meals.Meals(), id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": meals.ErrNotFound.Error()})
		return
	}
	c.JSON(http.StatusOK, stored)
}

func (h *httpHandler) handleDeleteMeal(c *gin.Context) {
	id := c.Param("id")
	if err := h.meals.DeleteMeal(c.Request.Context(), id); err != nil {
		h.respondWithServiceError(c, "delete", id, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleDay(c *gin.Context) {
	date := c.Param("date")
	if err := meals.ValidateDate(date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dayResponse{
		Date:   date,
		Meals:  nonNilMeals(h.meals.MealsByDate(date)),
		Totals: h.meals.StatsByDate(date),
	})
}

func (h *httpHandler) handleMonth(c *gin.Context) {
	month, err := calendar.ParseMonth(c.Param("month"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	days := calendar.Summarize(month, h.meals.Meals())
	c.JSON(http.StatusOK, monthResponse{
		Month:  month.String(),
		Label:  month.Label(),
		Days:   days,
		Totals: calendar.MonthTotals(days),
	})
}

// handleSuggestions ranks history against q. When id names a stored meal the
// suggestions only offer values that row is missing.
func (h *httpHandler) handleSuggestions(c *gin.Context) {
	all := h.meals.Meals()
	var row meals.Meal
	if id := strings.TrimSpace(c.Query("id")); id != "" {
		row, _ = findMeal(all, id)
	}
	var index *recommend.Index
	if date := strings.TrimSpace(c.Query("date")); date != "" {
		if err := meals.ValidateDate(date); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		index = recommend.BuildWithFallback(all, meals.FilterByDate(all, date))
	} else {
		index = recommend.Build(all)
	}
	suggestions := index.Query(c.Query("q"), row)
	if suggestions == nil {
		suggestions = []recommend.Candidate{}
	}
	c.JSON(http.StatusOK, suggestionsResponse{Suggestions: suggestions})
}

func (h *httpHandler) respondWithServiceError(c *gin.Context, action, mealID string, err error) {
	switch {
	case errors.Is(err, meals.ErrInvalidMealType),
		errors.Is(err, meals.ErrInvalidDate),
		errors.Is(err, meals.ErrInvalidMealID):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, meals.ErrDuplicateMeal):
		c.JSON(http.StatusConflict, gin.H{"error": meals.ErrDuplicateMeal.Error()})
	case errors.Is(err, meals.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": meals.ErrNotFound.Error()})
	default:
		h.logger.Error("meal request failed",
			zap.String("action", action),
			zap.String("meal_id", mealID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func findMeal(list []meals.Meal, id string) (meals.Meal, bool) {
	for _, meal := range list {
		if meal.ID == id {
			return meal, true
		}
	}
	return meals.Meal{}, false
}

func nonNilMeals(list []meals.Meal) []meals.Meal {
	if list == nil {
		return []meals.Meal{}
	}
	return list
}
