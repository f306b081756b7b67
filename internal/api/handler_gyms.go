package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"gym-access-backend/internal/model"
)

// GymResponse represents the API response for a single gym.
type GymResponse struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Address        string `json:"address"`
	TotalEquipment int64  `json:"totalEquipment"`
	AvailableNow   int64  `json:"availableNow"`
}

// GetGyms handles the GET /api/gyms request.
func GetGyms(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var gyms []model.Gym
		if err := db.Find(&gyms).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve gyms"})
			return
		}

		// One aggregate pass over equipment instead of a query per gym.
		type aggRow struct {
			GymID        int64
			Total        int64
			AvailableNow int64
		}
		var aggs []aggRow
		if err := db.
			Model(&model.Equipment{}).
			Select("gym_id as gym_id, COUNT(*) as total, "+
				"SUM(CASE WHEN occupancy = ? AND operational_state = ? THEN 1 ELSE 0 END) as available_now",
				model.OccupancyAvailable, model.OperationalNormal).
			Group("gym_id").
			Scan(&aggs).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to aggregate equipment"})
			return
		}

		aggMap := make(map[int64]aggRow, len(aggs))
		for _, a := range aggs {
			aggMap[a.GymID] = a
		}

		responses := make([]GymResponse, 0, len(gyms))
		for _, g := range gyms {
			a := aggMap[g.ID] // zero value when the gym has no equipment
			responses = append(responses, GymResponse{
				ID: g.ID, Name: g.Name, Address: g.Address,
				TotalEquipment: a.Total, AvailableNow: a.AvailableNow,
			})
		}
		c.JSON(http.StatusOK, responses)
	}
}

// equipmentStatusResponse is the flattened structure for the equipment listing.
type equipmentStatusResponse struct {
	model.Equipment
	IsAvailable  bool  `json:"isAvailable"`
	WaitingCount int64 `json:"waitingCount"`
}

// GetGymEquipment handles the GET /api/gyms/{gym_id}/equipment request.
func GetGymEquipment(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		gymID, err := strconv.ParseInt(c.Param("gym_id"), 10, 64)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid gym ID"})
			return
		}

		var equipment []model.Equipment
		if err := db.Where("gym_id = ?", gymID).Order("id").Find(&equipment).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve equipment"})
			return
		}

		ids := make([]int64, len(equipment))
		for i, e := range equipment {
			ids[i] = e.ID
		}

		type waitRow struct {
			EquipmentID int64
			Waiting     int64
		}
		var waits []waitRow
		if err := db.Model(&model.Reservation{}).
			Select("equipment_id as equipment_id, COUNT(*) as waiting").
			Where("equipment_id IN ? AND status = ?", ids, model.ReservationWaiting).
			Group("equipment_id").
			Scan(&waits).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to aggregate waiting counts"})
			return
		}

		waitMap := make(map[int64]int64, len(waits))
		for _, w := range waits {
			waitMap[w.EquipmentID] = w.Waiting
		}

		response := make([]equipmentStatusResponse, 0, len(equipment))
		for _, e := range equipment {
			response = append(response, equipmentStatusResponse{
				Equipment: e,
				IsAvailable: e.Occupancy == model.OccupancyAvailable &&
					e.OperationalState == model.OperationalNormal,
				WaitingCount: waitMap[e.ID],
			})
		}
		c.JSON(http.StatusOK, response)
	}
}
