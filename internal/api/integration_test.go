package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"gym-access-backend/config"
	"gym-access-backend/internal/db"
	"gym-access-backend/internal/model"
	"gym-access-backend/internal/mw"
	"gym-access-backend/internal/store"
)

const testJWTSecret = "integration-test-secret"

// newTestRouter wires the real router against an in-memory SQLite store.
func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	testDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := testDB.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(testDB))

	cfg := &config.Config{}
	cfg.Auth.JWTSecret = testJWTSecret
	cfg.Server.RateLimitPerSec = 1000
	cfg.Server.RateLimitBurst = 100
	cfg.Sweeper.TimeoutSeconds = 15
	cfg.Sweeper.BatchSize = 50

	s := store.NewGormStore(testDB, nil)
	return NewRouter(cfg, s, &webpush.Options{}, nil, nil), testDB
}

// token signs a bearer token the way the external auth service does.
func token(t *testing.T, userID int64, role model.Role) string {
	t.Helper()
	claims := mw.Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", userID),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func doJSON(router *gin.Engine, method, path, bearer string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", bearer)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func seedMachine(t *testing.T, testDB *gorm.DB, tag string) model.Equipment {
	t.Helper()
	gym := model.Gym{Name: "Test Gym " + tag}
	require.NoError(t, testDB.Create(&gym).Error)

	equipment := model.Equipment{
		GymID:       gym.ID,
		Name:        "Chest Press",
		NFCTagID:    tag,
		BaseMinutes: 15,
		BodyPart:    model.BodyPartUpper,
	}
	require.NoError(t, testDB.Create(&equipment).Error)
	return equipment
}

func TestAuthRequired(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, "POST", "/api/workouts/start", "", gin.H{"nfc_tag_id": "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(router, "POST", "/api/workouts/start", "Bearer not-a-token", gin.H{"nfc_tag_id": "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOperatorRoutesRejectMembers(t *testing.T) {
	router, _ := newTestRouter(t)
	member := token(t, 1, model.RoleMember)

	w := doJSON(router, "POST", "/api/admin/sweep", member, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(router, "PATCH", "/api/equipment/1/operational-state", member, gin.H{"state": "MAINTENANCE"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestWorkoutLifecycle(t *testing.T) {
	router, testDB := newTestRouter(t)
	equipment := seedMachine(t, testDB, "tag-lifecycle")
	alice := token(t, 1, model.RoleMember)
	bob := token(t, 2, model.RoleMember)

	// Alice taps in. No recommender is wired, so she gets the base duration.
	w := doJSON(router, "POST", "/api/workouts/start", alice, gin.H{"nfc_tag_id": equipment.NFCTagID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	started := decodeBody(t, w)
	assert.Equal(t, float64(15), started["allocated_minutes"])
	assert.Equal(t, "BASE", started["kind"])

	w = doJSON(router, "GET", "/api/workouts/session", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Bob finds the machine busy and queues instead.
	w = doJSON(router, "POST", "/api/workouts/start", bob, gin.H{"nfc_tag_id": equipment.NFCTagID})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(router, "POST", "/api/workouts/queue", bob, gin.H{"equipment_id": equipment.ID})
	require.Equal(t, http.StatusCreated, w.Code)
	ticket := decodeBody(t, w)
	assert.Equal(t, float64(1), ticket["position"])

	// A repeat tap on the queue button is a refresh, not a new entry.
	w = doJSON(router, "POST", "/api/workouts/queue", bob, gin.H{"equipment_id": equipment.ID})
	assert.Equal(t, http.StatusOK, w.Code)

	// Alice finishes; Bob is promoted to the NOTIFIED slot.
	w = doJSON(router, "POST", "/api/workouts/end", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, "GET", fmt.Sprintf("/api/workouts/queue/%d", equipment.ID), bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	status := decodeBody(t, w)
	assert.Equal(t, "NOTIFIED", status["status"])
	assert.Equal(t, float64(0), status["position"])

	// Bob claims his turn; the claim completes his reservation.
	w = doJSON(router, "POST", "/api/workouts/start", bob, gin.H{"nfc_tag_id": equipment.NFCTagID})
	require.Equal(t, http.StatusCreated, w.Code)
	claimed := decodeBody(t, w)
	assert.Equal(t, "BASE", claimed["kind"])

	w = doJSON(router, "GET", fmt.Sprintf("/api/workouts/queue/%d", equipment.ID), bob, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStartSessionErrors(t *testing.T) {
	router, _ := newTestRouter(t)
	alice := token(t, 1, model.RoleMember)

	w := doJSON(router, "POST", "/api/workouts/start", alice, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, "POST", "/api/workouts/start", alice, gin.H{"nfc_tag_id": "no-such-tag"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(router, "POST", "/api/workouts/end", alice, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLeaveQueue(t *testing.T) {
	router, testDB := newTestRouter(t)
	equipment := seedMachine(t, testDB, "tag-leave")
	bob := token(t, 2, model.RoleMember)

	w := doJSON(router, "POST", "/api/workouts/queue", bob, gin.H{"equipment_id": equipment.ID})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(router, "POST", "/api/workouts/queue/leave", bob, gin.H{"equipment_id": equipment.ID})
	require.Equal(t, http.StatusOK, w.Code)
	left := decodeBody(t, w)
	assert.Equal(t, float64(0), left["waiting_count"])

	w = doJSON(router, "POST", "/api/workouts/queue/leave", bob, gin.H{"equipment_id": equipment.ID})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGymListings(t *testing.T) {
	router, testDB := newTestRouter(t)
	equipment := seedMachine(t, testDB, "tag-listing")
	alice := token(t, 1, model.RoleMember)

	require.NoError(t, testDB.Create(&model.Reservation{
		UserID:      2,
		EquipmentID: equipment.ID,
		Status:      model.ReservationWaiting,
		CreatedAt:   time.Now().UTC(),
	}).Error)

	w := doJSON(router, "GET", "/api/gyms", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var gyms []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &gyms))
	require.Len(t, gyms, 1)
	assert.Equal(t, float64(1), gyms[0]["totalEquipment"])
	assert.Equal(t, float64(1), gyms[0]["availableNow"])

	w = doJSON(router, "GET", fmt.Sprintf("/api/gyms/%d/equipment", equipment.GymID), alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listing []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listing))
	require.Len(t, listing, 1)
	assert.Equal(t, true, listing[0]["isAvailable"])
	assert.Equal(t, float64(1), listing[0]["waitingCount"])
}

func TestGymEquipment_AggregateFailure(t *testing.T) {
	router, testDB := newTestRouter(t)
	equipment := seedMachine(t, testDB, "tag-agg-failure")
	alice := token(t, 1, model.RoleMember)

	// A broken waiting-count query must surface, not render empty queues.
	require.NoError(t, testDB.Migrator().DropTable(&model.Reservation{}))

	w := doJSON(router, "GET", fmt.Sprintf("/api/gyms/%d/equipment", equipment.GymID), alice, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestSetOperationalState(t *testing.T) {
	router, testDB := newTestRouter(t)
	equipment := seedMachine(t, testDB, "tag-maintenance")
	operator := token(t, 10, model.RoleOperator)
	alice := token(t, 1, model.RoleMember)

	w := doJSON(router, "PATCH",
		fmt.Sprintf("/api/equipment/%d/operational-state", equipment.ID),
		operator, gin.H{"state": "MAINTENANCE"})
	require.Equal(t, http.StatusOK, w.Code)

	// A machine under maintenance rejects taps.
	w = doJSON(router, "POST", "/api/workouts/start", alice, gin.H{"nfc_tag_id": equipment.NFCTagID})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(router, "PATCH",
		fmt.Sprintf("/api/equipment/%d/operational-state", equipment.ID),
		operator, gin.H{"state": "BROKEN"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminSweep(t *testing.T) {
	router, testDB := newTestRouter(t)
	equipment := seedMachine(t, testDB, "tag-sweep")
	operator := token(t, 10, model.RoleOperator)

	staleAt := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, testDB.Create(&model.Reservation{
		UserID:      2,
		EquipmentID: equipment.ID,
		Status:      model.ReservationNotified,
		CreatedAt:   staleAt,
		NotifiedAt:  &staleAt,
	}).Error)
	require.NoError(t, testDB.Create(&model.Reservation{
		UserID:      3,
		EquipmentID: equipment.ID,
		Status:      model.ReservationWaiting,
		CreatedAt:   time.Now().UTC(),
	}).Error)

	w := doJSON(router, "POST", "/api/admin/sweep", operator, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := decodeBody(t, w)
	assert.Equal(t, float64(1), result["expired_count"])
	assert.Equal(t, float64(1), result["notified_count"])
}
