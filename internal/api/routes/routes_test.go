package routes

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fleet-mileage/internal/models"
	"fleet-mileage/internal/repository"
	"fleet-mileage/internal/services"
	"fleet-mileage/pkg/jwt"
	"fleet-mileage/pkg/lock"
	"fleet-mileage/pkg/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiResponse struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Code       string          `json:"code"`
	Floor      *int            `json:"floor"`
	Pagination struct {
		Total int64 `json:"total"`
	} `json:"pagination"`
}

type testAPI struct {
	t      *testing.T
	router *gin.Engine
}

func setupAPI(t *testing.T, limiter ratelimit.RateLimiter) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	stores := repository.NewMemoryStores()
	users := services.NewUserService(stores.Users)
	for _, u := range []services.CreateUserRequest{
		{Name: "Admin", Email: "admin@fleet.test", Password: "secret123", Role: models.RoleAdmin},
		{Name: "Dana", Email: "dana@fleet.test", Password: "secret123", Role: models.RoleDriver},
		{Name: "Cory", Email: "cory@fleet.test", Password: "secret123", Role: models.RoleCopilot},
	} {
		_, err := users.CreateUser(context.Background(), &u)
		require.NoError(t, err)
	}

	router := gin.New()
	SetupRoutes(router, Dependencies{
		Stores:  stores,
		Locker:  lock.NewMemoryLocker(time.Second),
		Limiter: limiter,
		JWT:     jwt.NewJWTUtil("test-secret", time.Hour),
	})

	return &testAPI{t: t, router: router}
}

func (a *testAPI) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, apiResponse) {
	a.t.Helper()

	var payload bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&payload).Encode(body))
	}

	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var resp apiResponse
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func (a *testAPI) login(email string) string {
	a.t.Helper()
	w, resp := a.do("POST", "/api/v1/auth/login", "", gin.H{"email": email, "password": "secret123"})
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())

	var login services.LoginResponse
	require.NoError(a.t, json.Unmarshal(resp.Data, &login))
	return login.Token
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestAPI_TripLifecycle(t *testing.T) {
	api := setupAPI(t, nil)
	admin := api.login("admin@fleet.test")
	driver := api.login("dana@fleet.test")
	copilot := api.login("cory@fleet.test")

	w, resp := api.do("POST", "/api/v1/vehicles", admin, gin.H{"plateNumber": "v1", "odometer": 100})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	vehicle := decode[models.Vehicle](t, resp.Data)
	assert.Equal(t, "V1", vehicle.PlateNumber)

	w, resp = api.do("POST", "/api/v1/routes", admin, gin.H{"origin": "Depot", "destination": "Harbour"})
	require.Equal(t, http.StatusCreated, w.Code)
	route := decode[models.Route](t, resp.Data)

	w, _ = api.do("GET", "/api/v1/vehicles", driver, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, resp = api.do("POST", "/api/v1/trips", driver, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", resp.Code)

	w, resp = api.do("POST", "/api/v1/trips", driver, gin.H{
		"vehicleId": vehicle.ID.Hex(), "routeId": route.ID.Hex(), "startOdometer": 90,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "ODOMETER_BELOW_VEHICLE", resp.Code)
	require.NotNil(t, resp.Floor)
	assert.Equal(t, 100, *resp.Floor)

	w, resp = api.do("POST", "/api/v1/trips", driver, gin.H{
		"vehicleId": vehicle.ID.Hex(), "routeId": route.ID.Hex(), "startOdometer": 110,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	driverTrip := decode[models.Trip](t, resp.Data)

	w, resp = api.do("POST", "/api/v1/trips", copilot, gin.H{"vehicleId": vehicle.ID.Hex()})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	copilotTrip := decode[models.Trip](t, resp.Data)
	assert.Equal(t, 110, copilotTrip.Opening.StartOdometer)
	assert.Equal(t, "Harbour", copilotTrip.Destination)

	w, resp = api.do("GET", "/api/v1/trips/current", copilot, nil)
	require.Equal(t, http.StatusOK, w.Code)
	current := decode[services.CurrentTrip](t, resp.Data)
	require.NotNil(t, current.DriverClosed)
	assert.False(t, *current.DriverClosed)

	w, _ = api.do("GET", "/api/v1/trips/"+driverTrip.ID.Hex(), copilot, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, resp = api.do("GET", "/api/v1/trips/mine", driver, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Trip](t, resp.Data), 1)

	closePath := "/api/v1/trips/" + copilotTrip.ID.Hex() + "/close"
	w, resp = api.do("PUT", closePath, copilot, gin.H{"endOdometer": 150})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "DRIVER_NOT_YET_CLOSED", resp.Code)

	w, resp = api.do("PUT", "/api/v1/trips/"+driverTrip.ID.Hex()+"/close", copilot, gin.H{"endOdometer": 150})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "TRIP_NOT_OWNED", resp.Code)

	w, _ = api.do("PUT", "/api/v1/trips/"+driverTrip.ID.Hex()+"/close", driver, gin.H{"endOdometer": 150})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, resp = api.do("PUT", closePath, copilot, gin.H{"endOdometer": 140})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.NotNil(t, resp.Floor)
	assert.Equal(t, 150, *resp.Floor)

	w, _ = api.do("PUT", closePath, copilot, gin.H{"endOdometer": 150, "logNote": "all good"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, resp = api.do("GET", "/api/v1/vehicles/"+vehicle.ID.Hex(), admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 150, decode[models.Vehicle](t, resp.Data).Odometer)

	w, resp = api.do("GET", "/api/v1/admin/trips?vehicleId="+vehicle.ID.Hex()+"&limit=1", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(2), resp.Pagination.Total)
	assert.Len(t, decode[[]models.Trip](t, resp.Data), 1)

	w, resp = api.do("GET", "/api/v1/admin/reports/summary?groupBy=role", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	summaries := decode[[]services.Summary](t, resp.Data)
	require.Len(t, summaries, 2)
	assert.Equal(t, 40, summaries[0].TotalDistance)

	w, _ = api.do("GET", "/api/v1/admin/reports/export", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	rows, err := csv.NewReader(w.Body).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	w, resp = api.do("DELETE", "/api/v1/routes/"+route.ID.Hex(), admin, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ROUTE_IN_USE", resp.Code)
}

func TestAPI_AdminEditAndReopen(t *testing.T) {
	api := setupAPI(t, nil)
	admin := api.login("admin@fleet.test")
	driver := api.login("dana@fleet.test")

	_, resp := api.do("POST", "/api/v1/vehicles", admin, gin.H{"plateNumber": "V2", "odometer": 0})
	vehicle := decode[models.Vehicle](t, resp.Data)
	_, resp = api.do("POST", "/api/v1/routes", admin, gin.H{"origin": "A", "destination": "B"})
	route := decode[models.Route](t, resp.Data)

	_, resp = api.do("POST", "/api/v1/trips", driver, gin.H{
		"vehicleId": vehicle.ID.Hex(), "routeId": route.ID.Hex(), "startOdometer": 10,
	})
	trip := decode[models.Trip](t, resp.Data)

	w, resp := api.do("PUT", "/api/v1/admin/trips/"+trip.ID.Hex()+"/close", admin, gin.H{"endOdometer": 30})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	closed := decode[models.Trip](t, resp.Data)

	w, resp = api.do("PATCH", "/api/v1/admin/trips/"+trip.ID.Hex(), admin, gin.H{"logNote": "fixed", "version": closed.Version - 1})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CONCURRENT_UPDATE", resp.Code)

	w, resp = api.do("PATCH", "/api/v1/admin/trips/"+trip.ID.Hex(), admin, gin.H{"reopen": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Nil(t, decode[models.Trip](t, resp.Data).Closing)

	w, resp = api.do("GET", "/api/v1/admin/trips?status=open", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), resp.Pagination.Total)

	w, _ = api.do("DELETE", "/api/v1/admin/trips/"+trip.ID.Hex(), admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, resp = api.do("GET", "/api/v1/admin/trips?from=not-a-date", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", resp.Code)
}

func TestAPI_ClientTimestampsAndPaging(t *testing.T) {
	api := setupAPI(t, nil)
	admin := api.login("admin@fleet.test")
	driver := api.login("dana@fleet.test")

	_, resp := api.do("POST", "/api/v1/vehicles", admin, gin.H{"plateNumber": "V3", "odometer": 0})
	vehicle := decode[models.Vehicle](t, resp.Data)
	_, resp = api.do("POST", "/api/v1/routes", admin, gin.H{"origin": "A", "destination": "B"})
	route := decode[models.Route](t, resp.Data)

	w, resp := api.do("POST", "/api/v1/trips", driver, gin.H{
		"vehicleId": vehicle.ID.Hex(), "routeId": route.ID.Hex(), "startOdometer": 10, "openedAt": "01/05/2024",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", resp.Code)

	w, resp = api.do("POST", "/api/v1/trips", driver, gin.H{
		"vehicleId": vehicle.ID.Hex(), "routeId": route.ID.Hex(), "startOdometer": 10, "openedAt": "2024-05-01",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	trip := decode[models.Trip](t, resp.Data)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), trip.Opening.OpenedAt.UTC())

	w, resp = api.do("PUT", "/api/v1/trips/"+trip.ID.Hex()+"/close", driver, gin.H{
		"endOdometer": 25, "closedAt": "2024-05-01T18:30",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	closed := decode[models.Trip](t, resp.Data)
	require.NotNil(t, closed.Closing)
	assert.Equal(t, time.Date(2024, 5, 1, 18, 30, 0, 0, time.UTC), closed.Closing.ClosedAt.UTC())

	w, resp = api.do("GET", "/api/v1/admin/trips?page=4611686018427387904&limit=4", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, int64(1), resp.Pagination.Total)
	assert.Empty(t, decode[[]models.Trip](t, resp.Data))

	w, resp = api.do("GET", "/api/v1/admin/trips?page=2&limit=1", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]models.Trip](t, resp.Data))
}

func TestAPI_AuthAndUsers(t *testing.T) {
	api := setupAPI(t, nil)

	w, resp := api.do("POST", "/api/v1/auth/login", "", gin.H{"email": "dana@fleet.test", "password": "wrong1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", resp.Code)

	admin := api.login("admin@fleet.test")

	w, resp = api.do("POST", "/api/v1/admin/users", admin, gin.H{
		"name": "Eve", "email": "eve@fleet.test", "password": "secret123", "role": "driver",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	eve := decode[models.User](t, resp.Data)

	w, resp = api.do("POST", "/api/v1/admin/users", admin, gin.H{
		"name": "Eve", "email": "eve@fleet.test", "password": "secret123", "role": "driver",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "DUPLICATE_EMAIL", resp.Code)

	eveToken := api.login("eve@fleet.test")

	w, _ = api.do("PUT", "/api/v1/auth/password", eveToken, gin.H{"currentPassword": "secret123", "newPassword": "changed1"})
	require.Equal(t, http.StatusOK, w.Code)

	w, resp = api.do("GET", "/api/v1/auth/profile", eveToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "eve@fleet.test", decode[models.UserProfile](t, resp.Data).Email)

	w, _ = api.do("PATCH", "/api/v1/admin/users/"+eve.ID.Hex(), admin, gin.H{"active": false})
	require.Equal(t, http.StatusOK, w.Code)

	w, resp = api.do("POST", "/api/v1/auth/refresh", "", gin.H{"token": eveToken})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "ACCOUNT_INACTIVE", resp.Code)
}

func TestAPI_HealthAndRateLimit(t *testing.T) {
	config := ratelimit.DefaultConfig()
	config.DefaultLimits["auth_login"] = ratelimit.RateLimit{RequestsPerMinute: 1, BurstSize: 1, WindowSize: time.Minute}
	limiter := ratelimit.NewMemoryRateLimiter(config)
	t.Cleanup(limiter.Close)

	api := setupAPI(t, limiter)

	w, _ := api.do("GET", "/api/v1/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	api.login("dana@fleet.test")
	w, resp := api.do("POST", "/api/v1/auth/login", "", gin.H{"email": "dana@fleet.test", "password": "secret123"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.False(t, resp.Success)
}
