// Package scheduler runs the invalidation crank.
//
// On every cron tick the crank scans Issued and Claimed token managers,
// picks those whose time or use policy has fired and asks the custody
// service to evaluate them. The service re-checks each manager under its
// lock, so a manager that changed since the scan is left alone.
package scheduler
