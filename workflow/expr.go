package workflow

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// conditionCache is a thread-safe LRU cache of compiled expr programs,
// keyed by expression source, shared by LoopCondition.Expression,
// BreakRule.Condition, and TransitionConditional predicates.
type conditionCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List
}

type cacheEntry struct {
	key     string
	program *vm.Program
}

func newConditionCache(capacity int) *conditionCache {
	if capacity <= 0 {
		capacity = 256
	}
	return &conditionCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

func (c *conditionCache) get(key string) (*vm.Program, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.order.MoveToFront(el)
		return el.Value.(*cacheEntry).program, true
	}
	return nil, false
}

func (c *conditionCache) put(key string, program *vm.Program) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.order.MoveToFront(el)
		el.Value.(*cacheEntry).program = program
		return
	}
	el := c.order.PushFront(&cacheEntry{key: key, program: program})
	c.entries[key] = el
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).key)
		}
	}
}

var globalConditionCache = newConditionCache(256)

// EvaluateCondition compiles (or fetches from cache) and runs expression
// against env, expecting a boolean result. Used to evaluate
// TransitionConditional predicates, LoopCondition expressions, and
// BreakRule conditions against the execution context.
func EvaluateCondition(expression string, env map[string]any) (bool, error) {
	if expression == "" {
		return true, nil
	}

	program, ok := globalConditionCache.get(expression)
	if !ok {
		compiled, err := expr.Compile(expression, expr.Env(env), expr.AsBool())
		if err != nil {
			return false, fmt.Errorf("workflow: compile condition %q: %w", expression, err)
		}
		program = compiled
		globalConditionCache.put(expression, program)
	}

	result, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("workflow: evaluate condition %q: %w", expression, err)
	}
	boolResult, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("workflow: condition %q did not produce a boolean", expression)
	}
	return boolResult, nil
}
