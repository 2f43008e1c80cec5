package services

import "time"

// nowFunc is swapped out in tests that exercise time-based policies
// (claim windows, refund eligibility, due dates).
var nowFunc = time.Now
