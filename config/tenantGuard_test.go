package config

import (
	"context"
	"testing"

	"github.com/mmdatafocus/cashflow_backend/appctx"
	"gorm.io/gorm/clause"
)

func TestExprHasBusinessID(t *testing.T) {
	cases := []struct {
		name string
		expr clause.Expression
		want bool
	}{
		{"eq string column", clause.Eq{Column: "business_id", Value: "b1"}, true},
		{"eq qualified column", clause.Eq{Column: clause.Column{Table: "payments", Name: "BUSINESS_ID"}, Value: "b1"}, true},
		{"eq other column", clause.Eq{Column: "subscription_id", Value: 3}, false},
		{"in", clause.IN{Column: "business_id", Values: []interface{}{"b1", "b2"}}, true},
		{"raw expr", clause.Expr{SQL: "business_id = ? AND month = ?"}, true},
		{"raw expr without tenant", clause.Expr{SQL: "month = ?"}, false},
		{"nested and", clause.AndConditions{Exprs: []clause.Expression{
			clause.Eq{Column: "month", Value: "2025-04"},
			clause.Eq{Column: "business_id", Value: "b1"},
		}}, true},
		{"or without tenant", clause.OrConditions{Exprs: []clause.Expression{
			clause.Eq{Column: "month", Value: "2025-04"},
		}}, false},
	}
	for _, tc := range cases {
		if got := exprHasBusinessID(tc.expr); got != tc.want {
			t.Fatalf("%s: exprHasBusinessID=%v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestWhereHasBusinessID(t *testing.T) {
	if whereHasBusinessID(clause.Clause{}) {
		t.Fatalf("empty clause should not carry a tenant filter")
	}
	c := clause.Clause{Expression: clause.Where{Exprs: []clause.Expression{
		clause.Eq{Column: "id", Value: 1},
		clause.Eq{Column: "business_id", Value: "b1"},
	}}}
	if !whereHasBusinessID(c) {
		t.Fatalf("expected explicit business_id filter to be detected")
	}
}

func TestShouldBypassTenantScope(t *testing.T) {
	ctx := context.Background()
	if shouldBypassTenantScope(ctx) {
		t.Fatalf("plain context must be scoped")
	}
	if !shouldBypassTenantScope(appctx.Set(ctx, appctx.ContextKeySkipTenantScope, true)) {
		t.Fatalf("SkipTenantScope must bypass")
	}
	if !shouldBypassTenantScope(appctx.Set(ctx, appctx.ContextKeyIsAdmin, true)) {
		t.Fatalf("admin must bypass")
	}
	if got := businessIdFromContext(appctx.Set(ctx, appctx.ContextKeyBusinessId, "b1")); got != "b1" {
		t.Fatalf("businessIdFromContext=%q", got)
	}
}
