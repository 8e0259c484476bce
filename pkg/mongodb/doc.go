// Package mongodb manages MongoDB connectivity for the multi-database
// tenancy model: one central database holding the tenant directory and
// the email outbox, plus one logical database per tenant.
//
// The Registry owns every live connection. It is constructed once at
// startup, hands out cached per-tenant database handles on demand, and
// guarantees that concurrent first use of the same tenant establishes
// exactly one underlying client. Request handling code borrows handles
// for the duration of a request and never closes them; Shutdown closes
// everything for graceful process exit.
package mongodb
