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
	"sort"
	"strings"
	"sync"

	"github.com/xfali/neve-context/errors"
	"github.com/xfali/xlog"
)

type RegistryOpt func(*DefaultRegistry)

type DefaultRegistry struct {
	logger          xlog.Logger
	allowOverriding bool

	lock    sync.RWMutex
	defs    map[string]Definition
	names   []string
	aliases map[string]string
	merged  map[string]Definition
	frozen  bool
}

// NewRegistry 创建定义注册表，默认允许覆盖
func NewRegistry(opts ...RegistryOpt) *DefaultRegistry {
	ret := &DefaultRegistry{
		logger:          xlog.GetLogger(),
		allowOverriding: true,
		defs:            map[string]Definition{},
		aliases:         map[string]string{},
		merged:          map[string]Definition{},
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// 配置是否允许同名定义覆盖
// true为允许，后注册的定义替换先注册的定义
// false为严格模式，重复注册返回DuplicateDefinition错误
// 默认允许
func OptAllowOverriding(flag bool) RegistryOpt {
	return func(r *DefaultRegistry) {
		r.allowOverriding = flag
	}
}

func OptSetRegistryLogger(logger xlog.Logger) RegistryOpt {
	return func(r *DefaultRegistry) {
		r.logger = logger
	}
}

func (r *DefaultRegistry) AllowsOverriding() bool {
	return r.allowOverriding
}

func (r *DefaultRegistry) checkFrozen(op string) error {
	if r.frozen {
		return errors.Lifecycle("cannot %s: bean definition registry is frozen", op)
	}
	return nil
}

func (r *DefaultRegistry) RegisterDefinition(name string, def Definition) error {
	location := ""
	if def != nil {
		location = def.Generic().ResourceDescription
	}
	if err := checkDefinition(name, def, location); err != nil {
		return err
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if err := r.checkFrozen("register bean definition '" + name + "'"); err != nil {
		return err
	}
	if err := r.checkOverride(name, r.defs[name], def); err != nil {
		return err
	}
	r.putDefinition(name, def)
	r.merged = map[string]Definition{}
	return nil
}

func checkDefinition(name string, def Definition, location string) error {
	if name == "" {
		return errors.DefinitionParse(location, fmt.Errorf("bean name must not be empty"))
	}
	if def == nil {
		return errors.DefinitionParse(location, fmt.Errorf("bean definition of '%s' must not be nil", name))
	}
	return nil
}

func (r *DefaultRegistry) checkOverride(name string, old, def Definition) error {
	if old != nil && !r.allowOverriding {
		return errors.DuplicateDefinition(name, old.Generic().ResourceDescription, def.Generic().ResourceDescription)
	}
	return nil
}

func (r *DefaultRegistry) putDefinition(name string, def Definition) {
	if old, ok := r.defs[name]; ok {
		r.logger.Infof("Overriding bean definition for bean '%s' with a different definition: replacing [%s] with [%s]\n",
			name, old.Generic().String(), def.Generic().String())
	} else {
		r.names = append(r.names, name)
	}
	r.defs[name] = def
}

// RegisterBatch 校验整批注册操作后在同一把锁内全部写入，任一操作失败时注册表不变
func (r *DefaultRegistry) RegisterBatch(location string, batch []Registration) (int, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if err := r.checkFrozen("register bean definitions of [" + location + "]"); err != nil {
		return 0, err
	}

	staged := map[string]Definition{}
	aliases := make(map[string]string, len(r.aliases))
	for k, v := range r.aliases {
		aliases[k] = v
	}
	for _, op := range batch {
		if op.Alias != "" {
			changed, err := r.checkAlias(aliases, op.Alias, op.Name, location)
			if err != nil {
				return 0, err
			}
			if changed {
				setAlias(aliases, op.Alias, op.Name)
			}
			continue
		}
		if err := checkDefinition(op.Name, op.Def, location); err != nil {
			return 0, err
		}
		old, ok := staged[op.Name]
		if !ok {
			old = r.defs[op.Name]
		}
		if err := r.checkOverride(op.Name, old, op.Def); err != nil {
			return 0, err
		}
		staged[op.Name] = op.Def
	}

	n := 0
	for _, op := range batch {
		if op.Alias != "" {
			if changed, _ := r.checkAlias(r.aliases, op.Alias, op.Name, location); changed {
				r.putAlias(op.Alias, op.Name)
			}
			continue
		}
		r.putDefinition(op.Name, op.Def)
		n++
	}
	r.merged = map[string]Definition{}
	return n, nil
}

func (r *DefaultRegistry) RemoveDefinition(name string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if err := r.checkFrozen("remove bean definition '" + name + "'"); err != nil {
		return err
	}
	if _, ok := r.defs[name]; !ok {
		return errors.NoSuchDefinition(name)
	}
	delete(r.defs, name)
	for i, n := range r.names {
		if n == name {
			r.names = append(r.names[:i:i], r.names[i+1:]...)
			break
		}
	}
	r.merged = map[string]Definition{}
	return nil
}

func (r *DefaultRegistry) GetDefinition(name string) (Definition, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if def, ok := r.defs[name]; ok {
		return def, nil
	}
	return nil, errors.NoSuchDefinition(name)
}

func (r *DefaultRegistry) ContainsDefinition(name string) bool {
	r.lock.RLock()
	defer r.lock.RUnlock()
	_, ok := r.defs[name]
	return ok
}

func (r *DefaultRegistry) DefinitionNames() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return append([]string(nil), r.names...)
}

func (r *DefaultRegistry) DefinitionCount() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.names)
}

func (r *DefaultRegistry) Scan(f func(name string, def Definition) bool) {
	r.lock.RLock()
	names := append([]string(nil), r.names...)
	defs := make([]Definition, len(names))
	for i, n := range names {
		defs[i] = r.defs[n]
	}
	r.lock.RUnlock()

	for i := range names {
		if !f(names[i], defs[i]) {
			break
		}
	}
}

func (r *DefaultRegistry) RegisterAlias(alias, name string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if err := r.checkFrozen("register alias '" + alias + "'"); err != nil {
		return err
	}
	changed, err := r.checkAlias(r.aliases, alias, name, "")
	if err != nil || !changed {
		return err
	}
	r.putAlias(alias, name)
	r.merged = map[string]Definition{}
	return nil
}

// checkAlias 校验别名注册，changed为false时无需修改aliases
func (r *DefaultRegistry) checkAlias(aliases map[string]string, alias, name, location string) (changed bool, err error) {
	if alias == "" || name == "" {
		return false, errors.DefinitionParse(location, fmt.Errorf("alias and name must not be empty"))
	}
	if alias == name {
		_, ok := aliases[alias]
		return ok, nil
	}
	if old, ok := aliases[alias]; ok {
		if old == name {
			return false, nil
		}
		if !r.allowOverriding {
			return false, errors.DuplicateDefinition(alias, "alias for '"+old+"'", location)
		}
	}
	if canonicalName(aliases, name) == alias {
		return false, errors.UnresolvableReference(
			fmt.Sprintf("alias '%s' for name '%s': circular reference", alias, name), location, nil)
	}
	return true, nil
}

func (r *DefaultRegistry) putAlias(alias, name string) {
	if old, ok := r.aliases[alias]; ok && alias != name {
		r.logger.Infof("Overriding alias '%s' definition for registered name '%s' with new target name '%s'\n", alias, old, name)
	}
	setAlias(r.aliases, alias, name)
}

// alias与name相同时删除该别名
func setAlias(aliases map[string]string, alias, name string) {
	if alias == name {
		delete(aliases, alias)
		return
	}
	aliases[alias] = name
}

func (r *DefaultRegistry) RemoveAlias(alias string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if err := r.checkFrozen("remove alias '" + alias + "'"); err != nil {
		return err
	}
	if _, ok := r.aliases[alias]; !ok {
		return errors.NoSuchDefinition(alias)
	}
	delete(r.aliases, alias)
	return nil
}

func (r *DefaultRegistry) IsAlias(name string) bool {
	r.lock.RLock()
	defer r.lock.RUnlock()
	_, ok := r.aliases[name]
	return ok
}

func (r *DefaultRegistry) ResolveAlias(name string) string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.canonical(name)
}

func (r *DefaultRegistry) canonical(name string) string {
	return canonicalName(r.aliases, name)
}

func canonicalName(aliases map[string]string, name string) string {
	// 注册时已保证无环
	for i := 0; i <= len(aliases); i++ {
		next, ok := aliases[name]
		if !ok {
			return name
		}
		name = next
	}
	return name
}

// Aliases 返回直接或间接指向name的全部别名
func (r *DefaultRegistry) Aliases(name string) []string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	var ret []string
	for alias := range r.aliases {
		if alias != name && r.canonical(alias) == r.canonical(name) {
			ret = append(ret, alias)
		}
	}
	sort.Strings(ret)
	return ret
}

// Freeze 冻结注册表，之后所有结构性修改返回Lifecycle错误
func (r *DefaultRegistry) Freeze() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.frozen = true
}

func (r *DefaultRegistry) IsFrozen() bool {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.frozen
}

// Merged 返回name合并父定义后的结果，结果为新的对象
func (r *DefaultRegistry) Merged(name string) (Definition, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.mergedDefinition(r.canonical(name), nil)
}

func (r *DefaultRegistry) mergedDefinition(name string, chain []string) (Definition, error) {
	if m, ok := r.merged[name]; ok {
		return m.Clone(), nil
	}
	def, ok := r.defs[name]
	if !ok {
		return nil, errors.NoSuchDefinition(name)
	}
	g := def.Generic()
	var ret Definition
	if g.Parent == "" {
		ret = def.Clone()
		if ret.Generic().Scope == ScopeDefault {
			ret.Generic().Scope = ScopeSingleton
		}
	} else {
		for _, n := range chain {
			if n == name {
				e := errors.UnresolvableReference(
					fmt.Sprintf("parent of bean '%s': circular parent chain %s", name, strings.Join(append(chain, name), " -> ")),
					g.ResourceDescription, nil)
				e.BeanName = name
				return nil, e
			}
		}
		parentName := r.canonical(g.Parent)
		if _, ok := r.defs[parentName]; !ok {
			e := errors.UnresolvableReference(
				fmt.Sprintf("parent bean '%s' of bean '%s'", g.Parent, name), g.ResourceDescription, errors.NoSuchDefinition(g.Parent))
			e.BeanName = name
			return nil, e
		}
		parent, err := r.mergedDefinition(parentName, append(chain, name))
		if err != nil {
			return nil, err
		}
		ret = Merge(parent, def)
	}
	r.merged[name] = ret
	return ret.Clone(), nil
}
