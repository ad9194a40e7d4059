package acceptance

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestDamageLifecycle(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	cycleID := ts.CreateTestCycle(t, "CY-010", nil, nil)

	w := ts.POST("/damages", map[string]any{
		"cycleId":       cycleID,
		"damageType":    "puncture",
		"description":   "Rear tyre flat",
		"estimatedCost": "150.00",
	}, staffHeaders())
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}
	var report struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	json.Unmarshal(w.Body.Bytes(), &report)
	if report.Status != "pending" {
		t.Errorf("expected status pending, got %s", report.Status)
	}

	// pending -> under_repair -> repaired
	w = ts.POST("/damages/"+report.ID+"/status", map[string]string{"status": "under_repair"}, staffHeaders())
	if w.Code != http.StatusOK {
		t.Fatalf("under_repair: expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	w = ts.POST("/damages/"+report.ID+"/status", map[string]string{"status": "repaired"}, staffHeaders())
	if w.Code != http.StatusOK {
		t.Fatalf("repaired: expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	var repaired struct {
		Status            string `json:"status"`
		ResolvedOnDisplay string `json:"resolvedOnDisplay"`
	}
	json.Unmarshal(w.Body.Bytes(), &repaired)
	if repaired.Status != "repaired" {
		t.Errorf("expected status repaired, got %s", repaired.Status)
	}
	if repaired.ResolvedOnDisplay == "—" {
		t.Error("expected resolvedOn to be stamped")
	}

	// Backward move is refused
	w = ts.POST("/damages/"+report.ID+"/status", map[string]string{"status": "pending"}, staffHeaders())
	if w.Code != http.StatusBadRequest && w.Code != http.StatusConflict {
		t.Errorf("backward: expected 4xx, got %d: %s", w.Code, w.Body.String())
	}
}

func TestDamage_RequiresSubject(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	w := ts.POST("/damages", map[string]any{"damageType": "scratch"}, staffHeaders())
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d: %s", http.StatusBadRequest, w.Code, w.Body.String())
	}
}

func TestDamage_AccessoryOnlyReportAndDelete(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	helmetID := ts.CreateTestAccessory(t, "Helmet", "20.00")

	w := ts.POST("/damages", map[string]any{
		"accessoryId": helmetID,
		"damageType":  "strap broken",
	}, staffHeaders())
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}
	var report struct {
		ID string `json:"id"`
	}
	json.Unmarshal(w.Body.Bytes(), &report)

	// The join row shows up in the listing
	w = ts.GET("/damages?scope=active", staffHeaders())
	if w.Code != http.StatusOK {
		t.Fatalf("list: expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	var listed []struct {
		ID            string `json:"id"`
		AccessoryName string `json:"accessoryName"`
	}
	json.Unmarshal(w.Body.Bytes(), &listed)
	if len(listed) != 1 || listed[0].AccessoryName != "Helmet" {
		t.Errorf("expected one report naming the helmet, got %+v", listed)
	}

	w = ts.DELETE("/damages/"+report.ID, staffHeaders())
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete: expected status %d, got %d: %s", http.StatusNoContent, w.Code, w.Body.String())
	}

	var n int
	if err := ts.DB.Get(&n, "SELECT count(*) FROM damage_accessories"); err != nil {
		t.Fatalf("failed to count join rows: %v", err)
	}
	if n != 0 {
		t.Errorf("expected join rows removed, got %d", n)
	}
}

func TestToggleMaintenance(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	cycleID := ts.CreateTestCycle(t, "CY-011", nil, nil)

	w := ts.POST("/cycles/"+cycleID+"/toggle-maintenance", nil, staffHeaders())
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	var resp struct {
		Status string `json:"status"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != "maintenance" {
		t.Errorf("expected status maintenance, got %s", resp.Status)
	}

	// A scan on a maintenance cycle is blocked
	var scan map[string]any
	w = ts.POST("/kiosk/scan", map[string]string{"tagId": "TAG-CY-011"}, staffHeaders())
	json.Unmarshal(w.Body.Bytes(), &scan)
	if scan["action"] != "blocked" {
		t.Errorf("expected action blocked, got %v", scan["action"])
	}

	// Toggling again releases it
	w = ts.POST("/cycles/"+cycleID+"/toggle-maintenance", nil, staffHeaders())
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != "available" {
		t.Errorf("expected status available, got %s", resp.Status)
	}
}
