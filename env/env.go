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

package env

import (
	"strings"
	"sync"

	"github.com/xfali/xlog"
)

const (
	ActiveProfilesProperty  = "neve.profiles.active"
	DefaultProfilesProperty = "neve.profiles.default"
	DefaultProfile          = "default"
)

type PropertyResolver interface {
	Property(key string) (string, bool)

	GetProperty(key string, defaultValue string) string

	ContainsProperty(key string) bool

	// 解析占位符，无法解析的占位符原样保留
	ResolvePlaceholders(text string) string

	// 解析占位符，存在无法解析的占位符时返回错误
	ResolveRequiredPlaceholders(text string) (string, error)
}

type Environment interface {
	PropertyResolver

	PropertySources() *PropertySources

	ActiveProfiles() []string

	DefaultProfiles() []string

	SetActiveProfiles(profiles ...string)

	AddActiveProfile(profile string)

	SetDefaultProfiles(profiles ...string)

	// 任意一个profile满足即返回true，!prod 表示prod未激活
	AcceptsProfiles(profiles ...string) bool
}

type StandardEnvironment struct {
	logger  xlog.Logger
	sources PropertySources

	lock            sync.RWMutex
	activeProfiles  []string
	defaultProfiles []string
	activeResolved  bool
	defaultResolved bool
}

type Opt func(e *StandardEnvironment)

// NewEnvironment 创建默认环境，系统环境变量作为最低优先级的属性源
func NewEnvironment(opts ...Opt) *StandardEnvironment {
	ret := &StandardEnvironment{
		logger: xlog.GetLogger(),
	}
	ret.sources.AddLast(NewSystemEnvironmentSource())
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func OptSetLogger(logger xlog.Logger) Opt {
	return func(e *StandardEnvironment) {
		e.logger = logger
	}
}

// OptAddPropertySource 添加属性源，先添加的优先级高于系统环境变量
func OptAddPropertySource(sources ...PropertySource) Opt {
	return func(e *StandardEnvironment) {
		for _, s := range sources {
			e.sources.AddFirst(s)
		}
	}
}

// OptWithoutSystemEnvironment 不使用系统环境变量
func OptWithoutSystemEnvironment() Opt {
	return func(e *StandardEnvironment) {
		e.sources.Remove(SystemEnvironmentSourceName)
	}
}

func OptSetActiveProfiles(profiles ...string) Opt {
	return func(e *StandardEnvironment) {
		e.SetActiveProfiles(profiles...)
	}
}

func (e *StandardEnvironment) PropertySources() *PropertySources {
	return &e.sources
}

func (e *StandardEnvironment) Property(key string) (string, bool) {
	v, ok := e.sources.Property(key)
	if !ok {
		return "", false
	}
	return e.ResolvePlaceholders(v), true
}

func (e *StandardEnvironment) GetProperty(key string, defaultValue string) string {
	if v, ok := e.Property(key); ok {
		return v
	}
	return defaultValue
}

func (e *StandardEnvironment) ContainsProperty(key string) bool {
	_, ok := e.sources.Property(key)
	return ok
}

func (e *StandardEnvironment) ResolvePlaceholders(text string) string {
	v, err := ReplacePlaceholders(text, e.sources.Property, true)
	if err != nil {
		e.logger.Warnln(err)
		return text
	}
	return v
}

func (e *StandardEnvironment) ResolveRequiredPlaceholders(text string) (string, error) {
	return ReplacePlaceholders(text, e.sources.Property, false)
}

func (e *StandardEnvironment) ActiveProfiles() []string {
	e.lock.Lock()
	defer e.lock.Unlock()
	if !e.activeResolved {
		if v, ok := e.Property(ActiveProfilesProperty); ok {
			e.activeProfiles = SplitProfiles(v)
			if len(e.activeProfiles) > 0 {
				e.logger.Infof("active profiles %v\n", e.activeProfiles)
			}
		}
		e.activeResolved = true
	}
	return append([]string(nil), e.activeProfiles...)
}

func (e *StandardEnvironment) DefaultProfiles() []string {
	e.lock.Lock()
	defer e.lock.Unlock()
	if !e.defaultResolved {
		e.defaultProfiles = []string{DefaultProfile}
		if v, ok := e.Property(DefaultProfilesProperty); ok {
			e.defaultProfiles = SplitProfiles(v)
		}
		e.defaultResolved = true
	}
	return append([]string(nil), e.defaultProfiles...)
}

func (e *StandardEnvironment) SetActiveProfiles(profiles ...string) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.activeProfiles = cleanProfiles(profiles)
	e.activeResolved = true
}

func (e *StandardEnvironment) AddActiveProfile(profile string) {
	current := e.ActiveProfiles()
	for _, p := range current {
		if p == profile {
			return
		}
	}
	e.SetActiveProfiles(append(current, profile)...)
}

func (e *StandardEnvironment) SetDefaultProfiles(profiles ...string) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.defaultProfiles = cleanProfiles(profiles)
	e.defaultResolved = true
}

func (e *StandardEnvironment) AcceptsProfiles(profiles ...string) bool {
	for _, p := range profiles {
		p = strings.TrimSpace(p)
		if p == "" || p == "!" {
			continue
		}
		if strings.HasPrefix(p, "!") {
			if !e.isProfileActive(p[1:]) {
				return true
			}
		} else if e.isProfileActive(p) {
			return true
		}
	}
	return false
}

func (e *StandardEnvironment) isProfileActive(profile string) bool {
	active := e.ActiveProfiles()
	if len(active) == 0 {
		active = e.DefaultProfiles()
	}
	for _, p := range active {
		if p == profile {
			return true
		}
	}
	return false
}

// SplitProfiles 按逗号或空白分割profile列表
func SplitProfiles(s string) []string {
	return cleanProfiles(strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n'
	}))
}

func cleanProfiles(profiles []string) []string {
	ret := make([]string, 0, len(profiles))
	for _, p := range profiles {
		if p = strings.TrimSpace(p); p != "" {
			ret = append(ret, p)
		}
	}
	return ret
}
