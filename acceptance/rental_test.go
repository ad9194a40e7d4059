package acceptance

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRentalFlow_ScanStartEnd(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	locationID := ts.CreateTestLocation(t, "Riverside")
	typeID := ts.CreateTestCycleType(t, "City")
	cycleID := ts.CreateTestCycle(t, "CY-001", &typeID, &locationID)
	helmetID := ts.CreateTestAccessory(t, "Helmet", "20.00")
	ts.CreateTestSlab(t, typeID, locationID, 15, "30.00")

	// Scan an idle cycle: the kiosk should offer to start a rental
	w := ts.POST("/kiosk/scan", map[string]string{"tagId": "TAG-CY-001"}, staffHeaders())
	if w.Code != http.StatusOK {
		t.Fatalf("scan: expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	var scan map[string]any
	json.Unmarshal(w.Body.Bytes(), &scan)
	if scan["action"] != "start" {
		t.Errorf("expected action start, got %v", scan["action"])
	}

	// Start the rental with a helmet
	w = ts.POST("/rentals/start", map[string]any{
		"cycleId":       cycleID,
		"customerName":  "Asha",
		"customerPhone": "9876500001",
		"locationId":    locationID,
		"accessoryIds":  []string{helmetID},
	}, staffHeaders())
	if w.Code != http.StatusCreated {
		t.Fatalf("start: expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}
	var started struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	json.Unmarshal(w.Body.Bytes(), &started)
	if started.Status != "active" {
		t.Errorf("expected status active, got %s", started.Status)
	}

	// Scanning again now offers the return flow with a live estimate
	w = ts.POST("/kiosk/scan", map[string]string{"tagId": "TAG-CY-001"}, staffHeaders())
	if w.Code != http.StatusOK {
		t.Fatalf("rescan: expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	json.Unmarshal(w.Body.Bytes(), &scan)
	if scan["action"] != "return" {
		t.Errorf("expected action return, got %v", scan["action"])
	}
	if scan["estimate"] == nil {
		t.Error("expected an estimate for the active rental")
	}

	// The scan put the rental on the active view, so the watcher is
	// keeping a quote for it
	rentalUUID, _ := uuid.Parse(started.ID)
	if _, ok := ts.API.Watcher().Latest(rentalUUID); !ok {
		t.Error("expected the estimate watcher to track the scanned rental")
	}

	// Rewind the clock 20 minutes: 2 blocks of 15min at 30 each plus the
	// helmet at 20 comes to 80
	ts.SetRentalOutTime(t, started.ID, time.Now().Add(-20*time.Minute))

	w = ts.POST("/rentals/"+started.ID+"/end", nil, staffHeaders())
	if w.Code != http.StatusOK {
		t.Fatalf("end: expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	var ended struct {
		Status           string `json:"status"`
		DurationMinutes  int    `json:"durationMinutes"`
		CalculatedAmount string `json:"calculatedAmount"`
		FinalAmount      string `json:"finalAmount"`
	}
	json.Unmarshal(w.Body.Bytes(), &ended)
	if ended.Status != "completed" {
		t.Errorf("expected status completed, got %s", ended.Status)
	}
	if ended.DurationMinutes != 20 {
		t.Errorf("expected 20 minutes, got %d", ended.DurationMinutes)
	}
	if ended.CalculatedAmount != "80" {
		t.Errorf("expected calculated amount 80, got %s", ended.CalculatedAmount)
	}

	// Ending the rental shuts its watcher down
	if _, ok := ts.API.Watcher().Latest(rentalUUID); ok {
		t.Error("expected the estimate watcher to stop once the rental ended")
	}

	// The cycle is available again
	var cycleStatus string
	if err := ts.DB.Get(&cycleStatus, "SELECT status FROM cycles WHERE id = $1", cycleID); err != nil {
		t.Fatalf("failed to read cycle status: %v", err)
	}
	if cycleStatus != "available" {
		t.Errorf("expected cycle available, got %s", cycleStatus)
	}

	// So is the helmet
	var accStatus string
	if err := ts.DB.Get(&accStatus, "SELECT availability_status FROM accessories WHERE id = $1", helmetID); err != nil {
		t.Fatalf("failed to read accessory status: %v", err)
	}
	if accStatus != "available" {
		t.Errorf("expected accessory available, got %s", accStatus)
	}
}

func TestStartRental_RejectsSecondRental(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	cycleID := ts.CreateTestCycle(t, "CY-002", nil, nil)

	w := ts.POST("/rentals/start", map[string]any{"cycleId": cycleID, "customerName": "Ravi"}, staffHeaders())
	if w.Code != http.StatusCreated {
		t.Fatalf("start: expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}

	w = ts.POST("/rentals/start", map[string]any{"cycleId": cycleID, "customerName": "Ravi"}, staffHeaders())
	if w.Code != http.StatusConflict {
		t.Fatalf("expected status %d, got %d: %s", http.StatusConflict, w.Code, w.Body.String())
	}
	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["code"] != "RENTAL_IN_PROGRESS" && resp["code"] != "CYCLE_UNAVAILABLE" {
		t.Errorf("expected a conflict code, got %s", resp["code"])
	}
}

func TestStartRental_RequiresCustomerName(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	cycleID := ts.CreateTestCycle(t, "CY-007", nil, nil)

	for _, name := range []string{"", "   "} {
		w := ts.POST("/rentals/start", map[string]any{
			"cycleId":       cycleID,
			"customerName":  name,
			"customerPhone": "9876500002",
		}, staffHeaders())
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d for name %q, got %d: %s", http.StatusBadRequest, name, w.Code, w.Body.String())
		}
	}

	// Nothing was written: no rental and no nameless customer row
	var rentals int
	if err := ts.DB.Get(&rentals, "SELECT count(*) FROM rentals"); err != nil {
		t.Fatalf("failed to count rentals: %v", err)
	}
	if rentals != 0 {
		t.Errorf("expected no rentals, got %d", rentals)
	}
	var customers int
	if err := ts.DB.Get(&customers, "SELECT count(*) FROM customers"); err != nil {
		t.Fatalf("failed to count customers: %v", err)
	}
	if customers != 0 {
		t.Errorf("expected no customers, got %d", customers)
	}
}

func TestOverride_KeepsCalculatedAmount(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	locationID := ts.CreateTestLocation(t, "Riverside")
	typeID := ts.CreateTestCycleType(t, "City")
	cycleID := ts.CreateTestCycle(t, "CY-003", &typeID, &locationID)
	ts.CreateTestSlab(t, typeID, locationID, 15, "30.00")

	w := ts.POST("/rentals/start", map[string]any{
		"cycleId": cycleID, "customerName": "Meena", "locationId": locationID,
	}, staffHeaders())
	if w.Code != http.StatusCreated {
		t.Fatalf("start: expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}
	var started struct {
		ID string `json:"id"`
	}
	json.Unmarshal(w.Body.Bytes(), &started)

	ts.SetRentalOutTime(t, started.ID, time.Now().Add(-20*time.Minute))
	w = ts.POST("/rentals/"+started.ID+"/end", nil, staffHeaders())
	if w.Code != http.StatusOK {
		t.Fatalf("end: expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	// Staff knocks the charge down to 45
	w = ts.POST("/rentals/"+started.ID+"/override", map[string]any{"amount": 45}, staffHeaders())
	if w.Code != http.StatusOK {
		t.Fatalf("override: expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	var overridden struct {
		CalculatedAmount string `json:"calculatedAmount"`
		FinalAmount      string `json:"finalAmount"`
	}
	json.Unmarshal(w.Body.Bytes(), &overridden)
	if overridden.FinalAmount != "45" {
		t.Errorf("expected final amount 45, got %s", overridden.FinalAmount)
	}
	if overridden.CalculatedAmount != "60" {
		t.Errorf("expected calculated amount still 60, got %s", overridden.CalculatedAmount)
	}
}

func TestPayment_OnceOnly(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	cycleID := ts.CreateTestCycle(t, "CY-004", nil, nil)

	w := ts.POST("/rentals/start", map[string]any{"cycleId": cycleID, "customerName": "Ravi"}, staffHeaders())
	if w.Code != http.StatusCreated {
		t.Fatalf("start: expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}
	var started struct {
		ID string `json:"id"`
	}
	json.Unmarshal(w.Body.Bytes(), &started)

	w = ts.POST("/rentals/"+started.ID+"/end", nil, staffHeaders())
	if w.Code != http.StatusOK {
		t.Fatalf("end: expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	w = ts.POST("/rentals/"+started.ID+"/payment", map[string]string{"mode": "UPI"}, staffHeaders())
	if w.Code != http.StatusOK {
		t.Fatalf("payment: expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	// A second payment is refused, as is an override after payment
	w = ts.POST("/rentals/"+started.ID+"/payment", map[string]string{"mode": "Cash"}, staffHeaders())
	if w.Code != http.StatusConflict {
		t.Errorf("second payment: expected status %d, got %d: %s", http.StatusConflict, w.Code, w.Body.String())
	}
	w = ts.POST("/rentals/"+started.ID+"/override", map[string]any{"amount": 10}, staffHeaders())
	if w.Code != http.StatusConflict {
		t.Errorf("override after payment: expected status %d, got %d: %s", http.StatusConflict, w.Code, w.Body.String())
	}
}

func TestMe_ProvisionsStaffOnFirstRequest(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	w := ts.GET("/me", staffHeaders())
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	var me struct {
		Role     string `json:"role"`
		IsActive bool   `json:"isActive"`
	}
	json.Unmarshal(w.Body.Bytes(), &me)
	if me.Role != "staff" || !me.IsActive {
		t.Errorf("expected an active staff row, got %+v", me)
	}

	var n int
	if err := ts.DB.Get(&n, "SELECT count(*) FROM staff WHERE auth_id = $1", "auth0|test-operator"); err != nil {
		t.Fatalf("failed to count staff: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 staff row, got %d", n)
	}
}
