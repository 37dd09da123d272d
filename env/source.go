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

// Package env 提供属性源链、占位符解析以及profile管理。
package env

import (
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/xfali/fig"
)

const (
	SystemEnvironmentSourceName = "systemEnvironment"
	ApplicationConfigSourceName = "applicationConfig"
	DotEnvSourceName            = "dotenv"

	missingValue = "\x00neve.missing\x00"
)

type PropertySource interface {
	// 属性源名称，在同一个Environment中唯一
	Name() string

	// 查找属性，不存在时第二个返回值为false
	Property(key string) (string, bool)
}

type MapSource struct {
	name   string
	values map[string]string
}

// NewMapSource 使用values的副本创建属性源
func NewMapSource(name string, values map[string]string) *MapSource {
	v := make(map[string]string, len(values))
	for k, s := range values {
		v[k] = s
	}
	return &MapSource{
		name:   name,
		values: v,
	}
}

func (s *MapSource) Name() string {
	return s.name
}

func (s *MapSource) Property(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s *MapSource) Keys() []string {
	ret := make([]string, 0, len(s.values))
	for k := range s.values {
		ret = append(ret, k)
	}
	return ret
}

type propertiesSource struct {
	name  string
	props fig.Properties
}

// NewPropertiesSource 将fig配置作为属性源，key格式为 a.b.c
func NewPropertiesSource(name string, props fig.Properties) PropertySource {
	return &propertiesSource{
		name:  name,
		props: props,
	}
}

func (s *propertiesSource) Name() string {
	return s.name
}

func (s *propertiesSource) Property(key string) (string, bool) {
	if s.props == nil {
		return "", false
	}
	v := s.props.Get(key, missingValue)
	if v == missingValue {
		return "", false
	}
	return v, true
}

// NewDotEnvSource 读取.env文件作为属性源，后面的文件覆盖前面的
func NewDotEnvSource(name string, files ...string) (*MapSource, error) {
	values := map[string]string{}
	for _, f := range files {
		v, err := godotenv.Read(f)
		if err != nil {
			return nil, err
		}
		for k, s := range v {
			values[k] = s
		}
	}
	return NewMapSource(name, values), nil
}

type systemSource struct {
	lookup func(string) (string, bool)
}

// NewSystemEnvironmentSource 系统环境变量属性源。
// 支持宽松匹配：neve.profiles.active 依次查找原名、neve_profiles_active、NEVE_PROFILES_ACTIVE
func NewSystemEnvironmentSource() PropertySource {
	return &systemSource{
		lookup: os.LookupEnv,
	}
}

func (s *systemSource) Name() string {
	return SystemEnvironmentSourceName
}

func (s *systemSource) Property(key string) (string, bool) {
	if v, ok := s.lookup(key); ok {
		return v, true
	}
	k := strings.NewReplacer(".", "_", "-", "_").Replace(key)
	if v, ok := s.lookup(k); ok {
		return v, true
	}
	return s.lookup(strings.ToUpper(k))
}

// PropertySources 有序的属性源链，越靠前优先级越高
type PropertySources struct {
	lock    sync.RWMutex
	sources []PropertySource
}

func (ps *PropertySources) indexOf(name string) int {
	for i, s := range ps.sources {
		if s.Name() == name {
			return i
		}
	}
	return -1
}

func (ps *PropertySources) remove(name string) {
	if i := ps.indexOf(name); i >= 0 {
		ps.sources = append(ps.sources[:i], ps.sources[i+1:]...)
	}
}

// AddFirst 添加最高优先级的属性源，同名属性源被替换
func (ps *PropertySources) AddFirst(s PropertySource) {
	ps.lock.Lock()
	defer ps.lock.Unlock()
	ps.remove(s.Name())
	ps.sources = append([]PropertySource{s}, ps.sources...)
}

// AddLast 添加最低优先级的属性源，同名属性源被替换
func (ps *PropertySources) AddLast(s PropertySource) {
	ps.lock.Lock()
	defer ps.lock.Unlock()
	ps.remove(s.Name())
	ps.sources = append(ps.sources, s)
}

// Replace 原位替换同名属性源，不存在时返回false
func (ps *PropertySources) Replace(s PropertySource) bool {
	ps.lock.Lock()
	defer ps.lock.Unlock()
	i := ps.indexOf(s.Name())
	if i < 0 {
		return false
	}
	ps.sources[i] = s
	return true
}

func (ps *PropertySources) Remove(name string) {
	ps.lock.Lock()
	defer ps.lock.Unlock()
	ps.remove(name)
}

func (ps *PropertySources) Get(name string) (PropertySource, bool) {
	ps.lock.RLock()
	defer ps.lock.RUnlock()
	if i := ps.indexOf(name); i >= 0 {
		return ps.sources[i], true
	}
	return nil, false
}

func (ps *PropertySources) Names() []string {
	ps.lock.RLock()
	defer ps.lock.RUnlock()
	ret := make([]string, 0, len(ps.sources))
	for _, s := range ps.sources {
		ret = append(ret, s.Name())
	}
	return ret
}

func (ps *PropertySources) Property(key string) (string, bool) {
	ps.lock.RLock()
	defer ps.lock.RUnlock()
	for _, s := range ps.sources {
		if v, ok := s.Property(key); ok {
			return v, true
		}
	}
	return "", false
}
