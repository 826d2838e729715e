package repository

import (
	"task-tracker/internal/models"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create persists a new user
	Create(user *models.User) error

	// FindByID finds a user by ID
	FindByID(id uint64) (*models.User, error)

	// FindByUsername finds a user by username
	FindByUsername(username string) (*models.User, error)
}

// TaskRepository defines the interface for task data access.
// Every lookup and mutation is scoped to an owner so a task is never
// visible or mutable outside the account that created it.
type TaskRepository interface {
	// Create persists a new task
	Create(task *models.Task) error

	// ListByOwner returns all tasks belonging to an owner
	ListByOwner(ownerID uint64) ([]models.Task, error)

	// FindByIDForOwner finds a task by ID, restricted to the given owner.
	// An existing task owned by someone else looks identical to a missing one.
	FindByIDForOwner(id, ownerID uint64) (*models.Task, error)

	// Update saves a modified task
	Update(task *models.Task) error

	// Delete removes a task, restricted to the given owner
	Delete(id, ownerID uint64) error
}
