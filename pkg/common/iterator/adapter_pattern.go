package iterator

// This file documents the recommended adapter pattern for slot iterator
// implementations.
//
// Guidelines for Iterator Adapters:
//
// 1. Naming Convention:
//    - Use a name describing the transformation ("BoundedIterator",
//      "FilteredIterator", "MergedIterator")
//    - Use "New[Type]Iterator" for constructor functions
//
// 2. Implementation Pattern:
//    - Store the source iterator as a field (or embed it when most
//      methods delegate unchanged)
//    - Implement the SlotIterator interface by delegating to the source
//    - Add any necessary range, filter or merge logic
//    - For invalid positions, be defensive: Slot() returns -1 and
//      Segment() returns 0 rather than stale values
//
// 3. Performance Considerations:
//    - Slot iterators walk an in-memory blob index; avoid per-step
//      allocation
//    - Use read-write locks instead of full mutexes where appropriate
//
// 4. Adapter Location:
//    - Implement adapters within the package that owns the source type
//    - For example, the region package owns the iterator over a region
//      file's blob index
//
// Example:
//
// // ExampleAdapter adapts a SourceIterator to the common SlotIterator interface
// type ExampleAdapter struct {
//     source SourceIterator
// }
//
// func NewExampleAdapter(source SourceIterator) *ExampleAdapter {
//     return &ExampleAdapter{source: source}
// }
//
// func (a *ExampleAdapter) SeekToFirst() {
//     a.source.SeekToFirst()
// }
//
// func (a *ExampleAdapter) SeekToLast() {
//     a.source.SeekToLast()
// }
//
// func (a *ExampleAdapter) Seek(target int) bool {
//     return a.source.Seek(target)
// }
//
// func (a *ExampleAdapter) Next() bool {
//     return a.source.Next()
// }
//
// func (a *ExampleAdapter) Slot() int {
//     if !a.Valid() {
//         return -1
//     }
//     return a.source.Slot()
// }
//
// func (a *ExampleAdapter) Segment() uint32 {
//     if !a.Valid() {
//         return 0
//     }
//     return a.source.Segment()
// }
//
// func (a *ExampleAdapter) Valid() bool {
//     return a.source != nil && a.source.Valid()
// }
