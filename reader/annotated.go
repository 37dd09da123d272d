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

package reader

import (
	"fmt"

	"github.com/xfali/neve-context/bean"
	"github.com/xfali/neve-context/errors"
	"github.com/xfali/neve-context/metadata"
)

const reflectionLocation = "reflection"

// AnnotatedReader 通过反射读取已加载类型的注解并注册定义，不要求类型带有Component注解
type AnnotatedReader struct {
	reader *defaultReader
}

func NewAnnotatedReader(registrar bean.Registrar, opts ...Opt) *AnnotatedReader {
	return &AnnotatedReader{
		reader: newReader(registrar, FormatScan, opts...),
	}
}

// Register 按顺序注册对象的类型，全部成功或全部失败，返回注册的定义数量
func (r *AnnotatedReader) Register(objects ...interface{}) (int, error) {
	return r.register(func(ctx *parseContext) error {
		for _, o := range objects {
			if err := r.registerObject(ctx, "", o); err != nil {
				return err
			}
		}
		return nil
	})
}

// RegisterWithName 以指定名称注册对象的类型
func (r *AnnotatedReader) RegisterWithName(name string, o interface{}) (int, error) {
	return r.register(func(ctx *parseContext) error {
		return r.registerObject(ctx, name, o)
	})
}

func (r *AnnotatedReader) register(fn func(ctx *parseContext) error) (int, error) {
	r.reader.lock.Lock()
	defer r.reader.lock.Unlock()

	staging := bean.NewStaging(r.reader.registrar, reflectionLocation)
	ctx := &parseContext{
		reader:    r.reader,
		location:  reflectionLocation,
		registrar: staging,
	}
	if err := fn(ctx); err != nil {
		return 0, err
	}
	return staging.Commit()
}

func (r *AnnotatedReader) registerObject(ctx *parseContext, name string, o interface{}) error {
	m, err := metadata.ReadObject(r.reader.annotations, o)
	if err != nil {
		return errors.DefinitionParse(reflectionLocation, err)
	}
	if r.reader.types != nil {
		if _, ok := r.reader.types.Type(m.ClassName()); ok {
			return registerAnnotated(ctx, name, m)
		}
		if err := r.reader.types.RegisterType(o); err != nil {
			return errors.DefinitionParse(reflectionLocation, fmt.Errorf("%s: %v", m.ClassName(), err))
		}
	}
	return registerAnnotated(ctx, name, m)
}
