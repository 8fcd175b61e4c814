/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package schema

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"sticker-ledger-go/internal/store"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Validator compiles rule metadata schemas once and validates metadata documents against them
type Validator struct {
	mu       sync.RWMutex
	compiled map[string]*jsonschema.Schema
}

func NewValidator() *Validator {
	return &Validator{compiled: make(map[string]*jsonschema.Schema)}
}

// Compile checks that the schema is a valid JSON schema.
func (v *Validator) Compile(schemaText string) error {
	_, err := v.schemaFor(schemaText)
	return err
}

// Validate checks metadata against the schema. An empty schema accepts anything.
func (v *Validator) Validate(schemaText string, metadata []byte) error {
	if strings.TrimSpace(schemaText) == "" {
		return nil
	}

	sch, err := v.schemaFor(schemaText)
	if err != nil {
		return err
	}

	if len(metadata) == 0 {
		metadata = []byte("{}")
	}
	var doc any
	dec := json.NewDecoder(bytes.NewReader(metadata))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return store.NewValidationError("metadata", "not valid JSON")
	}

	if err := sch.Validate(doc); err != nil {
		return store.NewValidationError("metadata", describe(err))
	}
	return nil
}

func (v *Validator) schemaFor(schemaText string) (*jsonschema.Schema, error) {
	sum := sha256.Sum256([]byte(schemaText))
	key := hex.EncodeToString(sum[:])

	v.mu.RLock()
	sch, ok := v.compiled[key]
	v.mu.RUnlock()
	if ok {
		return sch, nil
	}

	url := "mem://rules/" + key + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, strings.NewReader(schemaText)); err != nil {
		return nil, store.NewValidationError("metadata_schema", err.Error())
	}
	sch, err := compiler.Compile(url)
	if err != nil {
		return nil, store.NewValidationError("metadata_schema", err.Error())
	}

	v.mu.Lock()
	v.compiled[key] = sch
	v.mu.Unlock()
	return sch, nil
}

func describe(err error) string {
	if verr, ok := err.(*jsonschema.ValidationError); ok {
		leaf := verr
		for len(leaf.Causes) > 0 {
			leaf = leaf.Causes[0]
		}
		location := leaf.InstanceLocation
		if location == "" {
			location = "/"
		}
		return fmt.Sprintf("%s: %s", location, leaf.Message)
	}
	return err.Error()
}
