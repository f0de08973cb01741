// Copyright 2021 Silvio Böhler
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package flags

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/exp/slices"

	"github.com/sboehler/nexotax/lib/fx"
)

// YearsFlag manages a repeatable flag of tax years. Each value may hold
// a comma-separated list.
type YearsFlag struct {
	years []int
}

var _ pflag.Value = (*YearsFlag)(nil)

func (yf YearsFlag) String() string {
	var ss []string
	for _, y := range yf.years {
		ss = append(ss, strconv.Itoa(y))
	}
	return strings.Join(ss, ",")
}

// Set implements pflag.Value.
func (yf *YearsFlag) Set(v string) error {
	for _, s := range strings.Split(v, ",") {
		y, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("expected a year, got %q", s)
		}
		if y < 1970 || y > 9999 {
			return fmt.Errorf("invalid year %d", y)
		}
		if !slices.Contains(yf.years, y) {
			yf.years = append(yf.years, y)
		}
	}
	slices.Sort(yf.years)
	return nil
}

// Type implements pflag.Value.
func (yf YearsFlag) Type() string {
	return "YYYY[,YYYY]"
}

// Value returns the years in ascending order.
func (yf YearsFlag) Value() []int {
	return yf.years
}

// FallbackFlag manages a flag to select the FX fallback policy.
type FallbackFlag struct {
	val *fx.Fallback
}

var _ pflag.Value = (*FallbackFlag)(nil)

func (ff FallbackFlag) String() string {
	if ff.val == nil {
		return ""
	}
	return ff.val.String()
}

// Set implements pflag.Value.
func (ff *FallbackFlag) Set(v string) error {
	f, err := fx.ParseFallback(v)
	if err != nil {
		return err
	}
	ff.val = &f
	return nil
}

// Type implements pflag.Value.
func (ff FallbackFlag) Type() string {
	return "preceding|nearest"
}

// Value returns the policy and whether the flag has been set.
func (ff FallbackFlag) Value() (fx.Fallback, bool) {
	if ff.val == nil {
		return fx.Preceding, false
	}
	return *ff.val, true
}

// OpenFile opens the file at the given path as a buffered reader.
func OpenFile(p string) (*bufio.Reader, *os.File, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, nil, err
	}
	return bufio.NewReader(f), f, nil
}
