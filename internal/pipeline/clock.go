package pipeline

import "time"

// now is replaced in tests.
var now = time.Now
