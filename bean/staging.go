/*
 * Copyright (C) 2024, Xiongfa Li.
 * All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *   http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package bean

import (
	"fmt"

	"github.com/xfali/neve-context/errors"
)

// Staging 记录对目标Registrar的注册操作，Commit时按顺序提交。
// 用于保证单个资源的定义要么全部注册，要么全部不注册。
type Staging struct {
	target   Registrar
	location string
	ops      []Registration
	defs     map[string]Definition
	aliases  map[string]string
}

func NewStaging(target Registrar, location string) *Staging {
	return &Staging{
		target:   target,
		location: location,
		defs:     map[string]Definition{},
		aliases:  map[string]string{},
	}
}

func (s *Staging) AllowsOverriding() bool {
	if p, ok := s.target.(OverridePolicy); ok {
		return p.AllowsOverriding()
	}
	return true
}

func (s *Staging) RegisterDefinition(name string, def Definition) error {
	if name == "" {
		return errors.DefinitionParse(s.location, fmt.Errorf("bean name must not be empty"))
	}
	if !s.AllowsOverriding() {
		if old, ok := s.defs[name]; ok {
			return errors.DuplicateDefinition(name, old.Generic().ResourceDescription, s.location)
		}
		if s.target.ContainsDefinition(name) {
			return errors.DuplicateDefinition(name, "registry", s.location)
		}
	}
	s.defs[name] = def
	s.ops = append(s.ops, Registration{Name: name, Def: def})
	return nil
}

func (s *Staging) RegisterAlias(alias, name string) error {
	if alias == "" || name == "" {
		return errors.DefinitionParse(s.location, fmt.Errorf("alias and name must not be empty"))
	}
	s.aliases[alias] = name
	s.ops = append(s.ops, Registration{Name: name, Alias: alias})
	return nil
}

func (s *Staging) ContainsDefinition(name string) bool {
	if _, ok := s.defs[name]; ok {
		return true
	}
	return s.target.ContainsDefinition(name)
}

func (s *Staging) IsAlias(name string) bool {
	if _, ok := s.aliases[name]; ok {
		return true
	}
	return s.target.IsAlias(name)
}

// Count 已记录的定义数量
func (s *Staging) Count() int {
	n := 0
	for _, op := range s.ops {
		if op.Alias == "" {
			n++
		}
	}
	return n
}

// Commit 将记录的操作提交到目标，返回提交的定义数量。
// 目标实现BatchRegistrar时整体提交，失败时目标不变
func (s *Staging) Commit() (int, error) {
	if b, ok := s.target.(BatchRegistrar); ok {
		n, err := b.RegisterBatch(s.location, s.ops)
		if err != nil {
			return 0, withLocation(err, s.location)
		}
		s.ops = nil
		return n, nil
	}
	n := 0
	for _, op := range s.ops {
		var err error
		if op.Alias != "" {
			err = s.target.RegisterAlias(op.Alias, op.Name)
		} else {
			err = s.target.RegisterDefinition(op.Name, op.Def)
		}
		if err != nil {
			return n, withLocation(err, s.location)
		}
		if op.Alias == "" {
			n++
		}
	}
	s.ops = nil
	return n, nil
}

func withLocation(err error, location string) error {
	if e, ok := err.(*errors.Error); ok {
		return e.WithLocation(location)
	}
	return err
}
