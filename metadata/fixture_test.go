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

package metadata

import "fmt"

type Greeter interface {
	Greet(name string) string
}

type baseService struct {
	prefix string
}

func (b *baseService) Prefix() string {
	return b.prefix
}

type helloService struct {
	baseService
	_ struct{} `neve:"@Service(helloService) @Scope(value=prototype)"`

	Name string
}

var _ Greeter = (*helloService)(nil)

//neve:@Bean(greeting)
func (s *helloService) Greet(name string) string {
	return fmt.Sprintf("%s %s", s.Prefix(), name)
}

func (s helloService) Describe() string {
	return s.Name
}

func (s *helloService) MethodAnnotations() map[string]string {
	return map[string]string{
		"Greet": "@Bean(greeting)",
	}
}

type plainValue struct {
	Value int
}
