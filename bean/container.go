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

// Registrar 定义注册的最小接口，读取器只依赖该接口
type Registrar interface {
	// 注册定义，名称已存在时按覆盖策略替换或返回错误
	RegisterDefinition(name string, def Definition) error

	// 为name注册别名
	RegisterAlias(alias, name string) error

	ContainsDefinition(name string) bool

	IsAlias(name string) bool
}

// Registry 名称到定义的有序映射
type Registry interface {
	Registrar

	// 删除定义，名称不存在时返回NoSuchDefinition错误
	RemoveDefinition(name string) error

	// 获得定义，名称不存在时返回NoSuchDefinition错误
	GetDefinition(name string) (Definition, error)

	// 按注册顺序返回名称的快照
	DefinitionNames() []string

	DefinitionCount() int

	RemoveAlias(alias string) error

	// 解析别名得到规范名称，没有别名时返回name本身
	ResolveAlias(name string) string

	Aliases(name string) []string

	// 按注册顺序遍历开始时刻的快照，f返回false时停止
	Scan(f func(name string, def Definition) bool)
}

// Registration 一次注册操作，Alias非空时表示为Name注册别名
type Registration struct {
	Name  string
	Alias string
	Def   Definition
}

// BatchRegistrar 由可原子提交一批注册操作的Registrar实现
type BatchRegistrar interface {
	// 校验全部操作后再写入，返回写入的定义数量。失败时不做任何修改
	RegisterBatch(location string, batch []Registration) (int, error)
}

// OverridePolicy 由允许查询覆盖策略的Registrar实现
type OverridePolicy interface {
	AllowsOverriding() bool
}
