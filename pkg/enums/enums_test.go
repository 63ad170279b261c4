package enums

import "testing"

func TestParsePaymentMethod(t *testing.T) {
	for _, raw := range []string{"cash", "card", "transfer"} {
		got, err := ParsePaymentMethod(raw)
		if err != nil || string(got) != raw {
			t.Fatalf("ParsePaymentMethod(%q) = %q, %v", raw, got, err)
		}
	}
	if _, err := ParsePaymentMethod("ach"); err == nil {
		t.Fatal("expected ach to be rejected")
	}
	if PaymentMethod("").IsValid() {
		t.Fatal("empty payment method must be invalid")
	}
}

func TestUserRole(t *testing.T) {
	role, err := ParseUserRole("admin")
	if err != nil || !role.IsAdmin() {
		t.Fatalf("expected admin role, got %q %v", role, err)
	}
	if UserRoleCashier.IsAdmin() {
		t.Fatal("cashier must not be admin")
	}
	if _, err := ParseUserRole("owner"); err == nil {
		t.Fatal("expected unknown role error")
	}
}

func TestOutboxEnums(t *testing.T) {
	if !EventSaleCompleted.IsValid() || !EventSaleVoided.IsValid() || !AggregateSale.IsValid() {
		t.Fatal("expected sale enums to be valid")
	}
	if _, err := ParseOutboxEventType("order_created"); err == nil {
		t.Fatal("expected unknown event type to fail")
	}
	if got, err := ParseOutboxAggregateType("stock_record"); err != nil || got != AggregateStockRecord {
		t.Fatalf("unexpected aggregate %q %v", got, err)
	}
}

func TestMovementReason(t *testing.T) {
	if _, err := ParseMovementReason("theft"); err == nil {
		t.Fatal("expected unknown reason error")
	}
	if !MovementReasonRestock.IsValid() {
		t.Fatal("restock should be valid")
	}
	if got, err := ParseMovementReason("refund"); err != nil || got != MovementReasonRefund {
		t.Fatalf("unexpected refund reason %q %v", got, err)
	}
}

func TestRegisterStatus(t *testing.T) {
	if !RegisterStatusOpen.IsValid() || !RegisterStatusClosed.IsValid() {
		t.Fatal("open and closed should be valid")
	}
	if RegisterStatus("suspended").IsValid() {
		t.Fatal("unknown register status must be invalid")
	}
}

func TestOutboxDLQErrorReason(t *testing.T) {
	for _, raw := range []string{"max_attempts", "non_retryable", "unresolvable"} {
		if _, err := ParseOutboxDLQErrorReason(raw); err != nil {
			t.Fatalf("ParseOutboxDLQErrorReason(%q): %v", raw, err)
		}
	}
	if OutboxDLQErrorReason("timeout").IsValid() {
		t.Fatal("unknown reason must be invalid")
	}
}
