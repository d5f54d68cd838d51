/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package testmodels

import (
	"github.com/suparena/entitysession/registry"
)

// AnimalFamily is the shared store of Dog and Cat.
const AnimalFamily = "animals"

type Person struct {
	ID   string
	Name string
	Age  int
}

type Dog struct {
	ID    string
	Name  string
	Breed string
}

type Cat struct {
	ID     string
	Name   string
	Indoor bool
}

func PersonDescriptor() registry.Descriptor[Person] {
	return registry.Descriptor[Person]{
		Name:     "Person",
		ID:       func(p Person) string { return p.ID },
		AssignID: func(p Person, id string) Person { p.ID = id; return p },
		Fields: []registry.Field[Person]{
			registry.FieldOf("Name",
				func(p Person) string { return p.Name },
				func(p Person, v string) Person { p.Name = v; return p }),
			registry.FieldOf("Age",
				func(p Person) int { return p.Age },
				func(p Person, v int) Person { p.Age = v; return p }),
		},
	}
}

func DogDescriptor() registry.Descriptor[Dog] {
	return registry.Descriptor[Dog]{
		Name:   "Dog",
		ID:     func(d Dog) string { return d.ID },
		Shape:  registry.ShapeMember,
		Family: AnimalFamily,
		Fields: []registry.Field[Dog]{
			registry.FieldOf("Name", func(d Dog) string { return d.Name }, nil),
			registry.FieldOf("Breed", func(d Dog) string { return d.Breed }, nil),
		},
	}
}

func CatDescriptor() registry.Descriptor[Cat] {
	return registry.Descriptor[Cat]{
		Name:   "Cat",
		ID:     func(c Cat) string { return c.ID },
		Shape:  registry.ShapeMember,
		Family: AnimalFamily,
		Fields: []registry.Field[Cat]{
			registry.FieldOf("Name", func(c Cat) string { return c.Name }, nil),
			registry.FieldOf("Indoor", func(c Cat) bool { return c.Indoor }, nil),
		},
	}
}

// Register adds every test model to r.
func Register(r *registry.Registry) error {
	if err := registry.Register(r, RatingSystemDescriptor()); err != nil {
		return err
	}
	if err := registry.Register(r, PersonDescriptor()); err != nil {
		return err
	}
	if err := registry.Register(r, DogDescriptor()); err != nil {
		return err
	}
	return registry.Register(r, CatDescriptor())
}
