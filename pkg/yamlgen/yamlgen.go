// Copyright (c) Bartłomiej Płotka @bwplotka
// Licensed under the Apache License 2.0.

// Taken from Thanos project.
//
// Copyright (c) The Thanos Authors.
// Licensed under the Apache License 2.0.

// Package yamlgen generates YAML examples of configuration structs.
package yamlgen

import (
	"fmt"
	"io"
	"reflect"

	"github.com/fatih/structtag"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Generate writes YAML representation of obj into w.
func Generate(obj interface{}, w io.Writer) error {
	// We forbid omitempty option. This is for simplification for doc generation.
	if err := checkForOmitEmptyTagOption(obj); err != nil {
		return errors.Wrap(err, "invalid type")
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(obj); err != nil {
		return err
	}
	return enc.Close()
}

// Example is a named configuration example.
type Example struct {
	Name   string
	Config interface{}
}

// GenerateExamples writes examples as separate YAML documents, each starting with comment containing its name.
func GenerateExamples(w io.Writer, examples ...Example) error {
	for i, e := range examples {
		if i > 0 {
			if _, err := fmt.Fprintln(w, "---"); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "# %s\n", e.Name); err != nil {
			return err
		}
		if err := Generate(e.Config, w); err != nil {
			return errors.Wrap(err, e.Name)
		}
	}
	return nil
}

func checkForOmitEmptyTagOption(obj interface{}) error {
	return checkForOmitEmptyTagOptionRec(reflect.ValueOf(obj))
}

func checkForOmitEmptyTagOptionRec(v reflect.Value) error {
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			field := v.Type().Field(i)
			if !field.IsExported() {
				continue
			}

			tags, err := structtag.Parse(string(field.Tag))
			if err != nil {
				return errors.Wrapf(err, "%s: failed to parse tag %q", field.Name, field.Tag)
			}

			tag, err := tags.Get("yaml")
			if err != nil {
				return errors.Wrapf(err, "%s: failed to get tag %q", field.Name, field.Tag)
			}

			for _, opts := range tag.Options {
				if opts == "omitempty" {
					return errors.Errorf("omitempty is forbidden for config, but spotted on field '%s'", field.Name)
				}
			}

			if err := checkForOmitEmptyTagOptionRec(v.Field(i)); err != nil {
				return errors.Wrapf(err, "%s", field.Name)
			}
		}

	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := checkForOmitEmptyTagOptionRec(v.Index(i)); err != nil {
				return errors.Wrapf(err, "[%d]", i)
			}
		}

	case reflect.Ptr:
		if v.IsNil() {
			return errors.New("nil pointers are not allowed in configuration")
		}
		return checkForOmitEmptyTagOptionRec(v.Elem())

	case reflect.Interface:
		return checkForOmitEmptyTagOptionRec(v.Elem())
	}

	return nil
}
