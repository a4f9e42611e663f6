// Package models contains GORM persistence models mapped to database tables.
// They are kept apart from domain entities so that the domain stays free of ORM tags;
// each model carries ToDomain and FromDomain mappers used by the repositories.
package models
