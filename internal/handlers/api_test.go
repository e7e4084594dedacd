package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/driveguard/driveguard/internal/api"
	"github.com/driveguard/driveguard/internal/database"
	"github.com/driveguard/driveguard/internal/feed"
	"github.com/driveguard/driveguard/internal/livestatus"
	"github.com/driveguard/driveguard/internal/services"
	"github.com/driveguard/driveguard/internal/testhelpers"
)

type testAPI struct {
	handler *APIHandler
	mux     *http.ServeMux
	db      *gorm.DB
	live    *livestatus.MemoryStore
	events  *services.EventService
	alerts  *services.AlertService
	drivers *services.DriverService
	stats   *services.StatsService
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(
		&database.DriverProfile{},
		&database.DrowsinessEvent{},
		&database.Alert{},
		&database.DailyStats{},
		&database.DriverStats{},
		&database.AuditRecord{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	bus := feed.NewMemoryBus()
	t.Cleanup(func() { bus.Close() })
	live := livestatus.NewMemoryStore(time.Now)
	t.Cleanup(func() { live.Close() })

	events := services.NewEventService(db, bus)
	alerts := services.NewAlertService(db, bus)
	stats := services.NewStatsService(db)
	drivers := services.NewDriverService(db, bus)
	audit := services.NewAuditService(db)
	roster := services.NewRosterService(drivers, live)
	pipeline := services.NewPipeline(events, alerts, live, audit)

	handler := NewAPIHandler(events, alerts, stats, drivers, audit, roster, pipeline)
	mux := http.NewServeMux()
	handler.SetupRoutes(mux)

	return &testAPI{
		handler: handler,
		mux:     mux,
		db:      db,
		live:    live,
		events:  events,
		alerts:  alerts,
		drivers: drivers,
		stats:   stats,
	}
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
}

func TestDriversCRUD(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/api/drivers", map[string]interface{}{
		"driver_id":  "DRV001",
		"name":       "John Martinez",
		"age":        42,
		"experience": 15,
		"phone":      "+1-555-0101",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create driver = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	rec = a.do(t, http.MethodGet, "/api/drivers/DRV001", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get driver = %d, want 200", rec.Code)
	}
	var profile database.DriverProfile
	decodeBody(t, rec, &profile)
	if profile.Name != "John Martinez" || !profile.Active {
		t.Errorf("unexpected profile: %+v", profile)
	}
	if profile.Age != 42 || profile.Experience != 15 {
		t.Errorf("Age/Experience = %d/%d, want 42/15", profile.Age, profile.Experience)
	}

	rec = a.do(t, http.MethodPut, "/api/drivers/DRV001", map[string]string{"phone": "+1-555-0199"})
	if rec.Code != http.StatusOK {
		t.Fatalf("update driver = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &profile)
	if profile.Phone != "+1-555-0199" {
		t.Errorf("Phone = %q, want %q", profile.Phone, "+1-555-0199")
	}
	if profile.Name != "John Martinez" {
		t.Errorf("Name changed on partial update: %q", profile.Name)
	}

	rec = a.do(t, http.MethodDelete, "/api/drivers/DRV001", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete driver = %d, want 204", rec.Code)
	}

	// The profile survives as inactive.
	rec = a.do(t, http.MethodGet, "/api/drivers/DRV001", nil)
	decodeBody(t, rec, &profile)
	if profile.Active {
		t.Error("driver should be inactive after delete")
	}

	// Inactive drivers are excluded from the default list.
	rec = a.do(t, http.MethodGet, "/api/drivers", nil)
	var list []database.DriverProfile
	decodeBody(t, rec, &list)
	if len(list) != 0 {
		t.Errorf("expected empty active list, got %d", len(list))
	}
	rec = a.do(t, http.MethodGet, "/api/drivers?include_inactive=true", nil)
	decodeBody(t, rec, &list)
	if len(list) != 1 {
		t.Errorf("expected 1 driver in full list, got %d", len(list))
	}
}

func TestDrivers_NotFound(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodGet, "/api/drivers/DRV999", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get missing driver = %d, want 404", rec.Code)
	}
	rec = a.do(t, http.MethodDelete, "/api/drivers/DRV999", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("delete missing driver = %d, want 404", rec.Code)
	}
	rec = a.do(t, http.MethodPut, "/api/drivers/DRV999", map[string]string{"name": "Ghost"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("update missing driver = %d, want 404", rec.Code)
	}
}

func TestDrivers_UpdateReadFailure(t *testing.T) {
	a := newTestAPI(t)

	// A failing pre-update read must surface as a server error, not a
	// nil dereference when building the audit snapshot.
	if err := a.db.Migrator().DropTable(&database.DriverProfile{}); err != nil {
		t.Fatalf("failed to drop drivers table: %v", err)
	}
	rec := a.do(t, http.MethodPut, "/api/drivers/DRV001", map[string]string{"name": "Anyone"})
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("update with broken store = %d, want 500: %s", rec.Code, rec.Body.String())
	}
}

func TestDrivers_ValidationError(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/api/drivers", map[string]string{"name": "No ID"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("create without driver_id = %d, want 422", rec.Code)
	}
}

func TestRecordEvent_FullChain(t *testing.T) {
	a := newTestAPI(t)

	start := time.Now().Add(-2 * time.Minute)
	end := start.Add(78 * time.Second)
	rec := a.do(t, http.MethodPost, "/api/events", map[string]interface{}{
		"driver_id":   "DRV001",
		"driver_name": "John Martinez",
		"status":      "sleeping",
		"severity":    "high",
		"start_time":  start.Format(time.RFC3339),
		"end_time":    end.Format(time.RFC3339),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("record event = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var result services.Result
	decodeBody(t, rec, &result)
	if result.Event == nil {
		t.Fatal("expected event in result")
	}
	if result.Alert == nil {
		t.Fatal("expected derived alert in result")
	}
	if result.Alert.Priority != database.AlertPriorityCritical {
		t.Errorf("Priority = %q, want critical", result.Alert.Priority)
	}

	// Live status reflects the event.
	entry, err := a.live.Get(t.Context(), "DRV001")
	if err != nil {
		t.Fatalf("live Get failed: %v", err)
	}
	if entry == nil || entry.Status != livestatus.StatusSleeping {
		t.Errorf("unexpected live entry: %+v", entry)
	}
}

func TestRecordEvent_InvalidSeverity(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/api/events", map[string]interface{}{
		"driver_id":   "DRV001",
		"driver_name": "John Martinez",
		"status":      "drowsy",
		"severity":    "extreme",
		"start_time":  time.Now().Format(time.RFC3339),
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("record event with bad severity = %d, want 422", rec.Code)
	}
}

func TestResolveEvent(t *testing.T) {
	a := newTestAPI(t)

	event, err := a.events.Create(services.CreateEventInput{
		DriverID:   "DRV001",
		DriverName: "John Martinez",
		Status:     database.EventStatusDrowsy,
		Severity:   database.SeverityMedium,
		StartTime:  time.Now(),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	rec := a.do(t, http.MethodPost, "/api/events/"+event.EventID+"/resolve", map[string]string{
		"notes": "called the driver",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("resolve = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var item api.EventListItem
	decodeBody(t, rec, &item)
	if !item.Resolved || item.ResolvedAt == nil || item.ResolvedBy == "" {
		t.Errorf("resolution fields not set: %+v", item)
	}
	if item.Notes != "called the driver" {
		t.Errorf("Notes = %q", item.Notes)
	}

	// Resolving a missing event is a 404.
	rec = a.do(t, http.MethodPost, "/api/events/EVT-missing/resolve", map[string]string{})
	if rec.Code != http.StatusNotFound {
		t.Errorf("resolve missing = %d, want 404", rec.Code)
	}
}

func TestListEvents_Filters(t *testing.T) {
	a := newTestAPI(t)

	now := time.Now()
	for i, sev := range []database.Severity{database.SeverityLow, database.SeverityMedium, database.SeverityHigh} {
		if _, err := a.events.Create(services.CreateEventInput{
			DriverID:   "DRV001",
			DriverName: "John Martinez",
			Status:     database.EventStatusDrowsy,
			Severity:   sev,
			StartTime:  now.Add(-time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	rec := a.do(t, http.MethodGet, "/api/events?severity=high", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list by severity = %d", rec.Code)
	}
	var items []api.EventListItem
	decodeBody(t, rec, &items)
	if len(items) != 1 || items[0].Severity != database.SeverityHigh {
		t.Errorf("unexpected high severity list: %+v", items)
	}

	rec = a.do(t, http.MethodGet, "/api/events?severity=extreme", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid severity = %d, want 400", rec.Code)
	}

	rec = a.do(t, http.MethodGet, "/api/events?unresolved=true", nil)
	decodeBody(t, rec, &items)
	if len(items) != 3 {
		t.Errorf("unresolved = %d items, want 3", len(items))
	}

	rec = a.do(t, http.MethodGet, "/api/events", nil)
	decodeBody(t, rec, &items)
	if len(items) != 3 {
		t.Errorf("recent = %d items, want 3", len(items))
	}
	// Newest first.
	if items[0].Severity != database.SeverityLow {
		t.Errorf("expected newest event first, got %+v", items[0])
	}
}

func TestEventsPagination(t *testing.T) {
	a := newTestAPI(t)

	now := time.Now()
	for i := 0; i < 7; i++ {
		if _, err := a.events.Create(services.CreateEventInput{
			DriverID:   "DRV001",
			DriverName: "John Martinez",
			Status:     database.EventStatusDrowsy,
			Severity:   database.SeverityLow,
			StartTime:  now.Add(-time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	seen := 0
	cursor := ""
	pages := 0
	for {
		path := "/api/events?page_size=3"
		if cursor != "" {
			path += "&cursor=" + cursor
		}
		rec := a.do(t, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("page = %d: %s", rec.Code, rec.Body.String())
		}
		var page struct {
			Data       []api.EventListItem `json:"data"`
			NextCursor string              `json:"next_cursor"`
		}
		decodeBody(t, rec, &page)
		seen += len(page.Data)
		pages++
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	if seen != 7 {
		t.Errorf("walked %d events, want 7", seen)
	}
	if pages != 3 {
		t.Errorf("walked %d pages, want 3", pages)
	}

	rec := a.do(t, http.MethodGet, "/api/events?cursor=%21%21not-base64", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad cursor = %d, want 400", rec.Code)
	}
}

func TestAcknowledgeAlert(t *testing.T) {
	a := newTestAPI(t)

	alert, err := a.alerts.CreateFromEvent("DRV001", "John Martinez", "EVT-1", database.SeverityHigh, database.EventStatusSleeping)
	if err != nil {
		t.Fatalf("CreateFromEvent failed: %v", err)
	}

	rec := a.do(t, http.MethodPost, "/api/alerts/"+alert.AlertID+"/acknowledge", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("acknowledge = %d: %s", rec.Code, rec.Body.String())
	}
	var acked database.Alert
	decodeBody(t, rec, &acked)
	if !acked.Acknowledged || acked.AcknowledgedAt == nil {
		t.Errorf("acknowledge fields not set: %+v", acked)
	}

	rec = a.do(t, http.MethodPost, "/api/alerts/ALT-missing/acknowledge", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("acknowledge missing = %d, want 404", rec.Code)
	}
}

func TestAcknowledgeAll(t *testing.T) {
	a := newTestAPI(t)

	for i := 0; i < 3; i++ {
		if _, err := a.alerts.CreateFromEvent("DRV001", "John Martinez",
			fmt.Sprintf("EVT-%d", i), database.SeverityMedium, database.EventStatusDrowsy); err != nil {
			t.Fatalf("CreateFromEvent failed: %v", err)
		}
	}

	rec := a.do(t, http.MethodPost, "/api/alerts/acknowledge-all", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("acknowledge-all = %d: %s", rec.Code, rec.Body.String())
	}
	var resp api.AcknowledgeAllResponse
	decodeBody(t, rec, &resp)
	if resp.Acknowledged != 3 {
		t.Errorf("Acknowledged = %d, want 3", resp.Acknowledged)
	}

	rec = a.do(t, http.MethodGet, "/api/alerts?unacknowledged=true", nil)
	var remaining []database.Alert
	decodeBody(t, rec, &remaining)
	if len(remaining) != 0 {
		t.Errorf("expected no unacknowledged alerts, got %d", len(remaining))
	}
}

func TestStatsEndpoints(t *testing.T) {
	a := newTestAPI(t)

	if err := a.stats.SaveDailyStats(database.DailyStats{
		Date: "2026-03-14", TotalEvents: 5, HighSeverityCount: 2, DistinctDrivers: 3, PeakHour: 8,
	}); err != nil {
		t.Fatalf("SaveDailyStats failed: %v", err)
	}
	if err := a.stats.SaveDriverStats(database.DriverStats{
		DriverID: "DRV001", DriverName: "John Martinez", TotalEvents: 3, RiskScore: 37,
	}); err != nil {
		t.Fatalf("SaveDriverStats failed: %v", err)
	}

	rec := a.do(t, http.MethodGet, "/api/stats/daily/2026-03-14", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("daily stats = %d", rec.Code)
	}
	var daily database.DailyStats
	decodeBody(t, rec, &daily)
	if daily.TotalEvents != 5 || daily.PeakHour != 8 {
		t.Errorf("unexpected daily stats: %+v", daily)
	}

	rec = a.do(t, http.MethodGet, "/api/stats/daily/not-a-date", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad date = %d, want 400", rec.Code)
	}
	rec = a.do(t, http.MethodGet, "/api/stats/daily/2026-01-01", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing date = %d, want 404", rec.Code)
	}

	rec = a.do(t, http.MethodGet, "/api/stats/drivers/DRV001", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("driver stats = %d", rec.Code)
	}
	var ds database.DriverStats
	decodeBody(t, rec, &ds)
	if ds.RiskScore != 37 {
		t.Errorf("RiskScore = %d, want 37", ds.RiskScore)
	}

	rec = a.do(t, http.MethodGet, "/api/stats/drivers", nil)
	var all []database.DriverStats
	decodeBody(t, rec, &all)
	if len(all) != 1 {
		t.Errorf("driver stats list = %d, want 1", len(all))
	}

	rec = a.do(t, http.MethodGet, "/api/stats/dashboard", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("dashboard = %d, want 200", rec.Code)
	}
}

func TestRosterEndpoint(t *testing.T) {
	a := newTestAPI(t)

	profile := testhelpers.NewDriverProfileBuilder().
		WithDriverID("DRV002").
		WithName("Sarah Chen").
		Build()
	if err := a.drivers.Create(&profile); err != nil {
		t.Fatalf("Create driver failed: %v", err)
	}
	if err := a.live.SetStatus(t.Context(), "DRV002", "Sarah Chen", livestatus.StatusDrowsy); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}

	rec := a.do(t, http.MethodGet, "/api/roster", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("roster = %d: %s", rec.Code, rec.Body.String())
	}
	var roster []services.MergedDriver
	decodeBody(t, rec, &roster)
	if len(roster) != 1 {
		t.Fatalf("roster length = %d, want 1", len(roster))
	}
	if roster[0].CurrentStatus != livestatus.StatusDrowsy {
		t.Errorf("CurrentStatus = %q, want drowsy", roster[0].CurrentStatus)
	}
}

func TestAuditEndpoint(t *testing.T) {
	a := newTestAPI(t)

	// Mutations through the API leave audit records.
	rec := a.do(t, http.MethodPost, "/api/drivers", map[string]string{
		"driver_id": "DRV001",
		"name":      "John Martinez",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create driver = %d", rec.Code)
	}

	rec = a.do(t, http.MethodGet, "/api/audit", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("audit = %d", rec.Code)
	}
	var records []database.AuditRecord
	decodeBody(t, rec, &records)
	if len(records) != 1 {
		t.Fatalf("audit records = %d, want 1", len(records))
	}
	if records[0].Action != database.AuditActionCreate || records[0].TargetID != "DRV001" {
		t.Errorf("unexpected audit record: %+v", records[0])
	}

	rec = a.do(t, http.MethodGet, "/api/audit?collection=drivers&target_id=DRV001", nil)
	decodeBody(t, rec, &records)
	if len(records) != 1 {
		t.Errorf("filtered audit records = %d, want 1", len(records))
	}

	rec = a.do(t, http.MethodGet, "/api/audit?collection=drivers", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("collection without target_id = %d, want 400", rec.Code)
	}
}
