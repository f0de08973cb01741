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

package date

import (
	"time"
)

// Date creates a new UTC date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Day returns the UTC calendar day containing t.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return Date(t.Year(), t.Month(), t.Day())
}

// DaysBetween returns the number of whole calendar days from d1 to d2.
// The result is negative if d2 lies before d1.
func DaysBetween(d1, d2 time.Time) int {
	return int(Day(d2).Sub(Day(d1)).Hours() / 24)
}

// Period is a closed time range.
type Period struct {
	Start, End time.Time
}

// Year returns the period covering the given calendar year in UTC.
func Year(y int) Period {
	return Period{
		Start: Date(y, 1, 1),
		End:   Date(y+1, 1, 1).Add(-time.Nanosecond),
	}
}

// Contains returns whether t lies within the period.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}
