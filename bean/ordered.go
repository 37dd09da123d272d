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
	"github.com/xfali/goutils/container/skiplist"
)

const (
	DefaultOrder = 0
)

// Ordered 由需要排序的处理器实现，值越小越先执行
type Ordered interface {
	Order() int
}

// OrderOf o实现Ordered时返回其顺序，否则返回DefaultOrder
func OrderOf(o interface{}) int {
	if v, ok := o.(Ordered); ok {
		return v.Order()
	}
	return DefaultOrder
}

// OrderedList 按order排序的列表，相同order保持添加顺序
type OrderedList struct {
	l    *skiplist.SkipList
	size int
}

func NewOrderedList() *OrderedList {
	return &OrderedList{
		l: skiplist.New(skiplist.SetKeyCompareFunc(skiplist.CompareInt)),
	}
}

func (ol *OrderedList) Add(order int, v interface{}) {
	values := ol.l.Get(order)
	if values == nil {
		values = []interface{}{v}
	} else {
		values = append(values.([]interface{}), v)
	}
	ol.l.Set(order, values)
	ol.size++
}

// AddOrdered 使用OrderOf(v)作为顺序添加
func (ol *OrderedList) AddOrdered(v interface{}) {
	ol.Add(OrderOf(v), v)
}

func (ol *OrderedList) Len() int {
	return ol.size
}

func (ol *OrderedList) Values() []interface{} {
	ret := make([]interface{}, 0, ol.size)
	if ol.l.Len() == 0 {
		return ret
	}
	for x := ol.l.First(); x != nil; x = x.Next() {
		ret = append(ret, x.Value().([]interface{})...)
	}
	return ret
}

func (ol *OrderedList) Foreach(f func(v interface{}) bool) {
	for _, v := range ol.Values() {
		if !f(v) {
			return
		}
	}
}
