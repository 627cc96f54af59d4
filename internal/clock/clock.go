// Package clock отделяет получение текущего времени от хранилищ,
// чтобы тесты могли управлять временем.
package clock

import "time"

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System возвращает часы, основанные на time.Now.
func System() Clock { return systemClock{} }
