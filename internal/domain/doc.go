// Package domain holds the goal coaching model: users and their token
// budgets, goals, versioned plans with milestones, daily task instances,
// AI interaction records and notifications. It has no dependencies on
// storage or transport.
package domain
