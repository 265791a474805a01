// Package users stores weavy users and provisions them from verified identities.
package users
